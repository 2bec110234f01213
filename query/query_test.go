package query

import (
	"testing"

	"github.com/Felmond13/lstoredb/index"
	"github.com/Felmond13/lstoredb/table"
)

func newTestQuery(numColumns, keyColumn int) *Query {
	return New(table.New("grades", numColumns, keyColumn, index.ArrayKind, false))
}

func allOnes(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = 1
	}
	return p
}

func TestInsertAndSelect(t *testing.T) {
	q := newTestQuery(3, 0)
	defer q.Table.Close()

	if !q.Insert(1, 90, 85) {
		t.Fatal("expected insert to succeed")
	}
	records, ok := q.Select(1, 0, allOnes(3))
	if !ok {
		t.Fatal("expected select to succeed")
	}
	if len(records) != 1 || records[0].Columns[1] != 90 {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestInsertDuplicateKeyFails(t *testing.T) {
	q := newTestQuery(2, 0)
	defer q.Table.Close()
	q.Insert(1, 10)
	if q.Insert(1, 20) {
		t.Fatal("expected duplicate insert to fail")
	}
}

func TestSelectOnMissingKeyReturnsFalse(t *testing.T) {
	q := newTestQuery(2, 0)
	defer q.Table.Close()
	if _, ok := q.Select(99, 0, allOnes(2)); ok {
		t.Fatal("expected select on missing key to fail")
	}
}

func TestUpdateAndSelectVersion(t *testing.T) {
	q := newTestQuery(3, 0)
	defer q.Table.Close()
	q.Insert(1, 2, 3)
	q.Update(1, []*int64{nil, ptr(5), nil})
	q.Update(1, []*int64{nil, ptr(7), ptr(2)})
	q.Update(1, []*int64{ptr(9), nil, nil})

	latest, _ := q.Select(9, 0, allOnes(3))
	if latest[0].Columns[0] != 9 || latest[0].Columns[1] != 7 || latest[0].Columns[2] != 2 {
		t.Fatalf("unexpected latest: %+v", latest)
	}

	// La clé primaire a changé à la 3ᵉ mise à jour ; les versions
	// antérieures se recherchent toujours via la clé courante.
	oneAgo, _ := q.SelectVersion(9, 0, allOnes(3), -1)
	if oneAgo[0].Columns[1] != 7 || oneAgo[0].Columns[2] != 2 {
		t.Fatalf("unexpected version -1: %+v", oneAgo)
	}
	twoAgo, _ := q.SelectVersion(9, 0, allOnes(3), -2)
	if twoAgo[0].Columns[1] != 5 {
		t.Fatalf("unexpected version -2: %+v", twoAgo)
	}
}

func ptr(v int64) *int64 { return &v }

func TestDeleteThenSelectFails(t *testing.T) {
	q := newTestQuery(2, 0)
	defer q.Table.Close()
	q.Insert(1, 10)
	if !q.Delete(1) {
		t.Fatal("expected delete to succeed")
	}
	if _, ok := q.Select(1, 0, allOnes(2)); ok {
		t.Fatal("expected select after delete to fail")
	}
}

func TestSumVersionAggregatesRange(t *testing.T) {
	q := newTestQuery(2, 0)
	defer q.Table.Close()
	for k := int64(1); k <= 5; k++ {
		q.Insert(k, k*10)
	}
	sum, ok := q.Sum(2, 4, 1)
	if !ok {
		t.Fatal("expected sum to succeed")
	}
	if sum != 20+30+40 {
		t.Fatalf("expected 90, got %d", sum)
	}
}

// TestSumVersionUsesAttachedRangeIndex vérifie que Sum emprunte le chemin
// d'index d'intervalle (plutôt que le balayage clé par clé) quand la
// colonne de clé primaire porte un range index, que les insertions
// postérieures à l'attache y sont bien reflétées, et que le résultat obtenu
// est identique au balayage clé par clé.
func TestSumVersionUsesAttachedRangeIndex(t *testing.T) {
	q := newTestQuery(2, 0)
	defer q.Table.Close()
	for k := int64(1); k <= 5; k++ {
		q.Insert(k, k*10)
	}
	if err := q.Table.AttachRangeIndex(q.Table.KeyColumn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum, ok := q.Sum(2, 4, 1)
	if !ok {
		t.Fatal("expected sum to succeed")
	}
	if sum != 20+30+40 {
		t.Fatalf("expected 90, got %d", sum)
	}

	// Un insert postérieur à l'attache doit être visible par le chemin range
	// index sans intervention manuelle : maintainSecondaryOnInsert maintient
	// aussi les index d'intervalle, pas seulement les index secondaires.
	q.Insert(6, 60)
	sum, ok = q.Sum(2, 6, 1)
	if !ok {
		t.Fatal("expected sum to succeed")
	}
	if sum != 20+30+40+50+60 {
		t.Fatalf("expected 200, got %d", sum)
	}
}

func TestSumOnEmptyRangeReturnsFalse(t *testing.T) {
	q := newTestQuery(2, 0)
	defer q.Table.Close()
	if _, ok := q.Sum(100, 200, 1); ok {
		t.Fatal("expected sum on empty range to fail")
	}
}

func TestIncrement(t *testing.T) {
	q := newTestQuery(2, 0)
	defer q.Table.Close()
	q.Insert(1, 10)
	if !q.Increment(1, 1) {
		t.Fatal("expected increment to succeed")
	}
	records, _ := q.Select(1, 0, allOnes(2))
	if records[0].Columns[1] != 11 {
		t.Fatalf("expected 11 after increment, got %d", records[0].Columns[1])
	}
}

func TestSelectViaSecondaryIndex(t *testing.T) {
	q := newTestQuery(2, 0)
	defer q.Table.Close()
	q.Table.CreateIndex(1)
	q.Insert(1, 99)
	q.Insert(2, 99)

	records, ok := q.Select(99, 1, allOnes(2))
	if !ok {
		t.Fatal("expected select on secondary column to succeed")
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}
