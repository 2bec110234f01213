// Package query est la façade mince exposée à l'appelant : elle convertit
// toute erreur remontée par les couches inférieures en `false`/`nil`, comme
// le veut original_source/lstore/query.py ("Any query that crashes must
// return False"). C'est la SEULE couche où l'erreur est avalée — table,
// pagerange, index et storage renvoient tous des erreurs explicites.
package query

import "github.com/Felmond13/lstoredb/table"

// Record est la valeur retournée par Select/SelectVersion : le RID résolu,
// la clé de recherche d'origine, et les colonnes projetées.
type Record struct {
	RID     int64
	Key     int64
	Columns []int64
}

// Query regroupe les opérations orientées clé primaire sur une Table.
type Query struct {
	Table *table.Table
}

// New crée une façade de requêtes sur t.
func New(t *table.Table) *Query {
	return &Query{Table: t}
}

// Insert ajoute un record ; false si la clé primaire existe déjà ou si le
// nombre de colonnes est incorrect.
func (q *Query) Insert(columns ...int64) bool {
	_, err := q.Table.InsertRecord(columns)
	return err == nil
}

// Select lit la dernière version des records correspondant à searchKey sur
// la colonne searchKeyIndex, projetés selon projection (masque de 0/1).
func (q *Query) Select(searchKey int64, searchKeyIndex int, projection []int) ([]Record, bool) {
	return q.SelectVersion(searchKey, searchKeyIndex, projection, 0)
}

// SelectVersion lit la version relative demandée (0 = dernière, n = n mises
// à jour plus tôt) des records correspondant à searchKey.
func (q *Query) SelectVersion(searchKey int64, searchKeyIndex int, projection []int, relativeVersion int) ([]Record, bool) {
	ridList, err := q.ridsForSearch(searchKey, searchKeyIndex)
	if err != nil || len(ridList) == 0 {
		return nil, false
	}

	hops := relativeVersion
	if hops < 0 {
		hops = -hops
	}

	var records []Record
	for _, r := range ridList {
		targetRID, err := q.Table.VersionedRIDForBase(r, hops)
		if err != nil {
			return nil, false
		}
		columns, err := q.Table.GetColumnValuesAtRID(targetRID, r, projection)
		if err != nil {
			return nil, false
		}
		records = append(records, Record{RID: targetRID, Key: searchKey, Columns: columns})
	}
	return records, true
}

// Update applique les modifications de columns (nil = conserver) au record
// de clé primaire primaryKey.
func (q *Query) Update(primaryKey int64, columns []*int64) bool {
	_, err := q.Table.UpdateRecord(primaryKey, columns)
	return err == nil
}

// Delete retire le record de clé primaire primaryKey, en purgeant ses
// entrées d'index secondaires.
func (q *Query) Delete(primaryKey int64) bool {
	return q.Table.DeleteRecord(primaryKey, true) == nil
}

// Sum agrège aggregateColumn sur les clés primaires de [startRange, endRange].
func (q *Query) Sum(startRange, endRange int64, aggregateColumn int) (int64, bool) {
	return q.SumVersion(startRange, endRange, aggregateColumn, 0)
}

// SumVersion agrège aggregateColumn à la version relative demandée, sur les
// clés primaires de [startRange, endRange]. Utilise l'index d'intervalle
// attaché à la colonne de clé primaire s'il existe (cahier des charges
// §5.5), pour un balayage ordonné direct des RID de base dans l'intervalle
// sans repasser par l'index primaire clé par clé ; sinon balaie start..end
// clé par clé, à l'image du sum_version original.
func (q *Query) SumVersion(startRange, endRange int64, aggregateColumn int, relativeVersion int) (int64, bool) {
	hops := relativeVersion
	if hops < 0 {
		hops = -hops
	}
	projection := make([]int, q.Table.NumColumns)
	projection[aggregateColumn] = 1

	var total int64
	var any bool

	if ri := q.Table.RangeIndexFor(q.Table.KeyColumn); ri != nil {
		for _, baseRID := range ri.RangeScan(startRange, endRange) {
			targetRID, err := q.Table.VersionedRIDForBase(baseRID, hops)
			if err != nil {
				continue
			}
			columns, err := q.Table.GetColumnValuesAtRID(targetRID, baseRID, projection)
			if err != nil {
				continue
			}
			total += columns[0]
			any = true
		}
		if !any {
			return 0, false
		}
		return total, true
	}

	for key := startRange; key <= endRange; key++ {
		records, ok := q.SelectVersion(key, q.Table.KeyColumn, projection, relativeVersion)
		if !ok || len(records) == 0 {
			continue
		}
		total += records[0].Columns[0]
		any = true
	}
	if !any {
		return 0, false
	}
	return total, true
}

// Increment augmente de 1 la colonne column du record de clé primaire key.
func (q *Query) Increment(key int64, column int) bool {
	projection := make([]int, q.Table.NumColumns)
	for i := range projection {
		projection[i] = 1
	}
	records, ok := q.Select(key, q.Table.KeyColumn, projection)
	if !ok || len(records) == 0 {
		return false
	}
	updated := make([]*int64, q.Table.NumColumns)
	newValue := records[0].Columns[column] + 1
	updated[column] = &newValue
	return q.Update(key, updated)
}

func (q *Query) ridsForSearch(searchKey int64, searchKeyIndex int) ([]int64, error) {
	if searchKeyIndex == q.Table.KeyColumn {
		r, ok := q.Table.RIDForKey(searchKey)
		if !ok {
			return nil, table.ErrKeyNotFound
		}
		return []int64{r}, nil
	}
	return q.Table.SearchColumn(searchKey, searchKeyIndex)
}
