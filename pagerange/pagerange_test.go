package pagerange

import (
	"testing"

	"github.com/Felmond13/lstoredb/config"
	"github.com/Felmond13/lstoredb/directory"
	"github.com/Felmond13/lstoredb/rid"
)

func newTestRange(numUserCols int) *PageRange {
	return New(numUserCols, directory.New(), rid.NewAllocator())
}

func ptr(v int64) *int64 { return &v }

func TestInsertRecordClosesCycleAndReadsBack(t *testing.T) {
	pr := newTestRange(3)
	r, err := pr.InsertRecord([]int64{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := pr.GetLatestColumnValue(r, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected column 0 == 1, got %d", v)
	}
}

func TestUpdateRecordCarriesForwardUntouchedColumns(t *testing.T) {
	pr := newTestRange(3)
	base, _ := pr.InsertRecord([]int64{1, 2, 3})

	if _, err := pr.UpdateRecord(base, []*int64{nil, ptr(5), nil}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for col, want := range map[int]int64{0: 1, 1: 5, 2: 3} {
		got, err := pr.GetLatestColumnValue(base, col)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("column %d: expected %d, got %d", col, want, got)
		}
	}
}

// TestVersionedRIDMatchesOriginalWalkthrough reproduit l'exemple du scénario
// S2 de la source d'origine : trois mises à jour successives, puis
// vérification de chaque version relative.
func TestVersionedRIDMatchesOriginalWalkthrough(t *testing.T) {
	pr := newTestRange(3)
	base, _ := pr.InsertRecord([]int64{1, 2, 3})
	if _, err := pr.UpdateRecord(base, []*int64{nil, ptr(5), nil}); err != nil {
		t.Fatalf("update 1: %v", err)
	}
	if _, err := pr.UpdateRecord(base, []*int64{nil, ptr(7), ptr(2)}); err != nil {
		t.Fatalf("update 2: %v", err)
	}
	if _, err := pr.UpdateRecord(base, []*int64{ptr(9), nil, nil}); err != nil {
		t.Fatalf("update 3: %v", err)
	}

	cases := []struct {
		hops int
		want [3]int64
	}{
		{0, [3]int64{9, 7, 2}},
		{1, [3]int64{1, 7, 2}},
		{2, [3]int64{1, 5, 3}},
		{3, [3]int64{1, 2, 3}},
		{10, [3]int64{1, 2, 3}}, // au-delà de la profondeur de la chaîne, retombe sur le record de base.
	}
	for _, c := range cases {
		versionRID, err := pr.VersionedRID(base, c.hops)
		if err != nil {
			t.Fatalf("hops=%d: unexpected error: %v", c.hops, err)
		}
		for col := 0; col < 3; col++ {
			got, err := pr.ReadColumnAt(versionRID, col)
			if err != nil {
				t.Fatalf("hops=%d col=%d: %v", c.hops, col, err)
			}
			if got != c.want[col] {
				t.Fatalf("hops=%d col=%d: expected %d, got %d", c.hops, col, c.want[col], got)
			}
		}
	}
}

func TestUpdateRecordRejectsWrongColumnCount(t *testing.T) {
	pr := newTestRange(2)
	base, _ := pr.InsertRecord([]int64{1, 2})
	if _, err := pr.UpdateRecord(base, []*int64{nil}); err == nil {
		t.Fatal("expected error for mismatched column count")
	}
}

func TestPageRangeFullAfterCapacityExhausted(t *testing.T) {
	pr := newTestRange(1)
	total := config.MaxBasePagesInPageRange * config.MaxRecordsPerPage
	for i := 0; i < total; i++ {
		if _, err := pr.InsertRecord([]int64{int64(i)}); err != nil {
			t.Fatalf("insert %d: unexpected error: %v", i, err)
		}
	}
	if !pr.IsFull() {
		t.Fatal("expected range to report full after exhausting capacity")
	}
	if _, err := pr.InsertRecord([]int64{999}); err != ErrRangeFull {
		t.Fatalf("expected ErrRangeFull, got %v", err)
	}
}

func TestGetTailChainOrdersNewestFirstThenClosesOnBase(t *testing.T) {
	pr := newTestRange(1)
	base, _ := pr.InsertRecord([]int64{1})
	t1, _ := pr.UpdateRecord(base, []*int64{ptr(2)})
	t2, _ := pr.UpdateRecord(base, []*int64{ptr(3)})

	chain, err := pr.GetTailChain(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 entries (base + 2 tails), got %d", len(chain))
	}
	if chain[0].RID != base || chain[1].RID != t2 || chain[2].RID != t1 {
		t.Fatalf("unexpected chain order: %+v", chain)
	}
}
