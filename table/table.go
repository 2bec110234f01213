// Package table implémente la couche d'éventail du moteur : une table
// possède une liste de page ranges qui grandit à la demande, un index
// primaire et des index secondaires optionnels, et traduit les opérations
// orientées clé primaire en opérations orientées RID sur la bonne page
// range. Grounded sur original_source/lstore/table.py.
package table

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Felmond13/lstoredb/directory"
	"github.com/Felmond13/lstoredb/index"
	"github.com/Felmond13/lstoredb/pagerange"
	"github.com/Felmond13/lstoredb/rid"
)

// ErrWrongColumnCount signale un nombre de colonnes incohérent avec le
// schéma de la table.
var ErrWrongColumnCount = fmt.Errorf("table: wrong column count")

// ErrKeyExists signale une violation de l'unicité de la clé primaire à l'insertion.
var ErrKeyExists = fmt.Errorf("table: primary key already exists")

// ErrKeyNotFound signale une clé primaire absente à la mise à jour, la
// suppression ou la lecture.
var ErrKeyNotFound = fmt.Errorf("table: primary key not found")

// Table est l'unité de stockage nommée : un schéma figé de NumColumns
// colonnes entières, une colonne désignée comme clé primaire, une chaîne de
// page ranges, et ses index.
type Table struct {
	Name       string
	NumColumns int
	KeyColumn  int

	mu     sync.Mutex
	ranges []*pagerange.PageRange
	dir    *directory.Directory
	alloc  *rid.Allocator
	idx    *index.Index

	async bool
}

// New crée une table vide avec une première page range. async sélectionne
// le mode de maintenance des index secondaires (cahier des charges §4.7) :
// série si false, multiprocessing (file + fence) si true.
func New(name string, numColumns, keyColumn int, defaultKind index.Kind, async bool) *Table {
	dir := directory.New()
	alloc := rid.NewAllocator()
	t := &Table{
		Name:       name,
		NumColumns: numColumns,
		KeyColumn:  keyColumn,
		dir:        dir,
		alloc:      alloc,
		idx:        index.New(numColumns, keyColumn, defaultKind),
		async:      async,
	}
	t.ranges = append(t.ranges, pagerange.New(numColumns, dir, alloc))
	return t
}

// Close arrête le worker d'index asynchrone de la table.
func (t *Table) Close() {
	t.idx.Close()
}

// CreateIndex construit un index secondaire sur column et le remplit à
// partir des records vivants — le CreateIndex non-stub annoncé en
// index.CreateIndex. Le remplissage se fait par RID croissant (voir
// liveRIDsSorted) pour qu'un index tableau fraîchement construit restitue la
// même séquence qu'un balayage complet, et pas l'ordre non déterministe de
// l'itération sur la map de l'index primaire.
func (t *Table) CreateIndex(column int) error {
	if err := t.idx.CreateIndex(column); err != nil {
		return err
	}
	for _, r := range t.liveRIDsSorted() {
		pr, err := t.findPageRangeWithRID(r)
		if err != nil {
			return err
		}
		v, err := pr.GetLatestColumnValue(r, column)
		if err != nil {
			return err
		}
		t.idx.AddSecondary(column, v, r)
	}
	return nil
}

// DropIndex supprime l'index secondaire d'une colonne.
func (t *Table) DropIndex(column int) error {
	return t.idx.DropIndex(column)
}

// AttachRangeIndex installe un index d'intervalle en mémoire sur column et
// le remplit à partir des records vivants, par RID croissant.
func (t *Table) AttachRangeIndex(column int) error {
	ri := t.idx.AttachRangeIndex(column)
	for _, r := range t.liveRIDsSorted() {
		pr, err := t.findPageRangeWithRID(r)
		if err != nil {
			return err
		}
		v, err := pr.GetLatestColumnValue(r, column)
		if err != nil {
			return err
		}
		ri.Insert(v, r)
	}
	return nil
}

// WaitForAsyncIndex bloque jusqu'à ce que toute mise à jour d'index
// secondaire déjà postée ait été appliquée.
func (t *Table) WaitForAsyncIndex() {
	t.idx.WaitForAsyncIndex()
}

// InsertRecord ajoute un nouveau record de base. columns doit avoir
// exactement NumColumns éléments ; la clé primaire doit être absente de
// l'index.
func (t *Table) InsertRecord(columns []int64) (int64, error) {
	if len(columns) != t.NumColumns {
		return 0, ErrWrongColumnCount
	}
	key := columns[t.KeyColumn]
	if t.idx.Primary.Exists(key) {
		return 0, ErrKeyExists
	}

	newRID, err := t.insertIntoLatestRange(columns)
	if err != nil {
		return 0, err
	}
	if err := t.idx.Primary.Add(key, newRID); err != nil {
		return 0, err
	}
	t.maintainSecondaryOnInsert(columns, newRID)
	return newRID, nil
}

// insertIntoLatestRange choisit la dernière page range sous t.mu, la remplace
// par une toute neuve si elle est pleine, puis insère hors verrou. Les
// inserts frais ne sont pas partitionnés par clé (§5 : seules les mises à
// jour d'une même clé sont garanties disjointes entre workers), donc rien
// n'empêche deux workers de choisir la même dernière page range et de la
// remplir tous les deux entre le moment où elle est choisie et celui où
// chacun y insère effectivement. Si ce course aboutit à pagerange.ErrRangeFull
// malgré le choix fait sous verrou, on reboucle pour en choisir/créer une
// nouvelle plutôt que de faire échouer un insert qui aurait dû réussir.
func (t *Table) insertIntoLatestRange(columns []int64) (int64, error) {
	for {
		t.mu.Lock()
		last := t.ranges[len(t.ranges)-1]
		if last.IsFull() {
			last = pagerange.New(t.NumColumns, t.dir, t.alloc)
			t.ranges = append(t.ranges, last)
		}
		t.mu.Unlock()

		newRID, err := last.InsertRecord(columns)
		if err == pagerange.ErrRangeFull {
			continue
		}
		return newRID, err
	}
}

func (t *Table) maintainSecondaryOnInsert(columns []int64, r int64) {
	for col := 0; col < t.NumColumns; col++ {
		if !t.idx.HasAnyIndex(col) {
			continue
		}
		if t.async {
			t.idx.EnqueueAddSecondary(col, columns[col], r)
		} else {
			t.idx.AddSecondary(col, columns[col], r)
		}
	}
}

// UpdateRecord résout le RID associé à primaryKey, délègue la construction
// du record de tail cumulatif à la page range, rekey l'index primaire si la
// colonne de clé primaire elle-même est modifiée, et maintient les index
// secondaires touchés. columns[i] == nil signifie "conserver la valeur
// actuelle" (cahier des charges §4.6).
func (t *Table) UpdateRecord(primaryKey int64, columns []*int64) (int64, error) {
	if len(columns) != t.NumColumns {
		return 0, ErrWrongColumnCount
	}
	baseRID, ok := t.idx.Primary.Get(primaryKey)
	if !ok {
		return 0, ErrKeyNotFound
	}
	pr, err := t.findPageRangeWithRID(baseRID)
	if err != nil {
		return 0, err
	}

	old := make([]int64, t.NumColumns)
	for col := 0; col < t.NumColumns; col++ {
		if columns[col] != nil {
			v, err := pr.GetLatestColumnValue(baseRID, col)
			if err != nil {
				return 0, err
			}
			old[col] = v
		}
	}

	tailRID, err := pr.UpdateRecord(baseRID, columns)
	if err != nil {
		return 0, err
	}

	if columns[t.KeyColumn] != nil && *columns[t.KeyColumn] != primaryKey {
		if err := t.idx.Primary.Rekey(primaryKey, *columns[t.KeyColumn]); err != nil {
			return 0, err
		}
	}
	for col := 0; col < t.NumColumns; col++ {
		if columns[col] == nil || !t.idx.HasAnyIndex(col) {
			continue
		}
		if t.async {
			t.idx.EnqueueRemoveSecondary(col, old[col], baseRID)
			t.idx.EnqueueAddSecondary(col, *columns[col], baseRID)
		} else {
			t.idx.RemoveSecondary(col, old[col], baseRID)
			t.idx.AddSecondary(col, *columns[col], baseRID)
		}
	}
	return tailRID, nil
}

// DeleteRecord retire l'entrée d'index primaire et l'entrée de répertoire du
// record de base ; les entrées de tail restent dans le répertoire mais
// deviennent inaccessibles depuis l'index (cahier des charges §4.6).
// dropSecondary, si vrai, retire aussi les entrées secondaires pointant sur
// ce RID plutôt que de les laisser périmées.
func (t *Table) DeleteRecord(primaryKey int64, dropSecondary bool) error {
	baseRID, ok := t.idx.Primary.Get(primaryKey)
	if !ok {
		return ErrKeyNotFound
	}

	if dropSecondary {
		pr, err := t.findPageRangeWithRID(baseRID)
		if err == nil {
			for col := 0; col < t.NumColumns; col++ {
				if !t.idx.HasAnyIndex(col) {
					continue
				}
				if v, err := pr.GetLatestColumnValue(baseRID, col); err == nil {
					t.idx.RemoveSecondary(col, v, baseRID)
				}
			}
		}
	}

	if err := t.idx.Primary.Delete(primaryKey); err != nil {
		return err
	}
	t.dir.DeletePage(baseRID)
	return nil
}

// GetLatestColumnValues projette les colonnes dont le bit correspondant dans
// projection vaut 1, pour la dernière version du record associé à
// primaryKey.
func (t *Table) GetLatestColumnValues(primaryKey int64, projection []int) ([]int64, error) {
	if len(projection) != t.NumColumns {
		return nil, ErrWrongColumnCount
	}
	baseRID, ok := t.idx.Primary.Get(primaryKey)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return t.getLatestColumnValuesAt(baseRID, projection)
}

// VersionedRIDForBase résout le RID de la version relative hops en arrière
// d'un record de base, sans passer par l'index primaire — utilisé par query
// quand le RID vient déjà d'une recherche secondaire ou d'un balayage.
func (t *Table) VersionedRIDForBase(baseRID int64, hops int) (int64, error) {
	pr, err := t.findPageRangeWithRID(baseRID)
	if err != nil {
		return 0, err
	}
	return pr.VersionedRID(baseRID, hops)
}

// GetColumnValuesAtRID projette les colonnes d'un RID de version déjà résolu
// (targetRID), en retrouvant sa page range via le RID de base baseRID.
func (t *Table) GetColumnValuesAtRID(targetRID, baseRID int64, projection []int) ([]int64, error) {
	if len(projection) != t.NumColumns {
		return nil, ErrWrongColumnCount
	}
	pr, err := t.findPageRangeWithRID(baseRID)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, t.NumColumns)
	for col := 0; col < t.NumColumns; col++ {
		if projection[col] != 1 {
			continue
		}
		v, err := pr.ReadColumnAt(targetRID, col)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetColumnValuesAtVersion projette les colonnes à la version relative hops
// en arrière à partir de la dernière (0 = dernière version), pour le record
// de clé primaire primaryKey.
func (t *Table) GetColumnValuesAtVersion(primaryKey int64, projection []int, hops int) ([]int64, error) {
	baseRID, ok := t.idx.Primary.Get(primaryKey)
	if !ok {
		return nil, ErrKeyNotFound
	}
	versionRID, err := t.VersionedRIDForBase(baseRID, hops)
	if err != nil {
		return nil, err
	}
	return t.GetColumnValuesAtRID(versionRID, baseRID, projection)
}

func (t *Table) getLatestColumnValuesAt(baseRID int64, projection []int) ([]int64, error) {
	pr, err := t.findPageRangeWithRID(baseRID)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, t.NumColumns)
	for col := 0; col < t.NumColumns; col++ {
		if projection[col] != 1 {
			continue
		}
		v, err := pr.GetLatestColumnValue(baseRID, col)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// BruteForceSearch balaie tous les records de base vivants et retourne ceux
// dont la dernière valeur de column égale value — utilisé quand column ne
// porte pas d'index secondaire. Parcourt les RID par ordre croissant (voir
// liveRIDsSorted) : un balayage physique page range par page range — ce que
// cette méthode remplace — les visiterait dans cet ordre, qui est aussi
// l'ordre d'insertion restitué par un index secondaire de type tableau
// (arrayIndex.SearchRecord). Préserver cet ordre fait que brute_force_search
// et un index secondaire array renvoient la même séquence de RID pour la
// même valeur recherchée.
func (t *Table) BruteForceSearch(value int64, column int) ([]int64, error) {
	var matches []int64
	for _, r := range t.liveRIDsSorted() {
		pr, err := t.findPageRangeWithRID(r)
		if err != nil {
			return nil, err
		}
		v, err := pr.GetLatestColumnValue(r, column)
		if err != nil {
			return nil, err
		}
		if v == value {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

// liveRIDsSorted retourne les RID de base de tous les records vivants, triés
// par ordre croissant — PrimaryIndex.All() les livre dans l'ordre non
// déterministe d'une map, qu'il faut trier pour retrouver l'ordre qu'un
// balayage physique page range par page range aurait produit.
func (t *Table) liveRIDsSorted() []int64 {
	all := t.idx.Primary.All()
	rids := make([]int64, 0, len(all))
	for _, r := range all {
		rids = append(rids, r)
	}
	sort.Slice(rids, func(i, j int) bool { return rids[i] < rids[j] })
	return rids
}

// RIDForKey retourne le RID de base associé à une clé primaire.
func (t *Table) RIDForKey(key int64) (int64, bool) {
	return t.idx.Primary.Get(key)
}

// SearchColumn retourne les RID portant value sur column, en passant par
// l'index secondaire s'il existe, et par un balayage complet sinon.
func (t *Table) SearchColumn(value int64, column int) ([]int64, error) {
	if rids, ok := t.idx.SearchRecord(column, value); ok {
		return rids, nil
	}
	return t.BruteForceSearch(value, column)
}

// RangeIndexFor expose l'index d'intervalle attaché à column, ou nil.
func (t *Table) RangeIndexFor(column int) index.RangeIndex {
	return t.idx.RangeIndexFor(column)
}

// findPageRangeWithRID retrouve la page range détenant un RID de base par
// arithmétique sur le lot de RID, sans balayage (cahier des charges §4.6).
func (t *Table) findPageRangeWithRID(baseRID int64) (*pagerange.PageRange, error) {
	idx := rid.PageRangeIndexOf(baseRID)
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.ranges) {
		return nil, fmt.Errorf("table: rid %d maps to out-of-range page range %d", baseRID, idx)
	}
	return t.ranges[idx], nil
}
