// Package pagerange implémente le protocole de mise à jour du moteur : le
// composant qui route les insertions vers la bonne page de base, construit
// les records de tail cumulatifs, répond aux lectures ponctuelles en suivant
// une seule indirection, et aux lectures versionnées en remontant la chaîne
// d'indirection. Grounded sur
// lstore/page_range.py de la source d'origine, réécrit dans le style Go du
// professeur (erreurs explicites plutôt qu'assertions, mutex unique par
// range).
package pagerange

import (
	"fmt"
	"sync"

	"github.com/Felmond13/lstoredb/config"
	"github.com/Felmond13/lstoredb/directory"
	"github.com/Felmond13/lstoredb/rid"
	"github.com/Felmond13/lstoredb/storage"
)

// ErrRangeFull signale qu'une page range a atteint sa capacité de
// config.NumRecordsInPageRange records de base ; Table doit en ouvrir une nouvelle.
var ErrRangeFull = fmt.Errorf("pagerange: range is full")

// TailVersion est une entrée de la chaîne de tail : un RID et ses valeurs de
// colonnes utilisateur complètes à cette version.
type TailVersion struct {
	RID     int64
	Columns []int64
}

// PageRange détient jusqu'à config.MaxBasePagesInPageRange pages de base et
// une chaîne illimitée de pages de tail. Le planificateur garantit que deux
// workers ne touchent jamais la même clé primaire, mais plusieurs workers
// peuvent atteindre la même page range (clés différentes, inserts frais) ; le
// mutex interne sérialise ces accès, ainsi que les usages hors planificateur
// (chemin série de query, tests).
type PageRange struct {
	mu          sync.Mutex
	numUserCols int
	basePages   []*storage.BasePage
	tailPages   []*storage.TailPage
	dir         *directory.Directory
	alloc       *rid.Allocator
}

// New crée une page range avec une première page de base et une première
// page de tail, chacune dotée d'un lot de RID frais.
func New(numUserCols int, dir *directory.Directory, alloc *rid.Allocator) *PageRange {
	return &PageRange{
		numUserCols: numUserCols,
		basePages:   []*storage.BasePage{newBasePage(numUserCols, alloc)},
		tailPages:   []*storage.TailPage{storage.NewTailPage(numUserCols, alloc.NextTailBatch())},
		dir:         dir,
		alloc:       alloc,
	}
}

// newBasePage crée une page de base sur un lot frais de l'allocateur.
// NextBaseBatch rend son lot inversé (plus petit RID en dernier) et une page
// logique consomme son lot depuis l'indice 0 : le lot est remis dans l'ordre
// croissant pour que le premier insert prenne le plus petit RID.
func newBasePage(numUserCols int, alloc *rid.Allocator) *storage.BasePage {
	batch := alloc.NextBaseBatch()
	for i, j := 0, len(batch)-1; i < j; i, j = i+1, j-1 {
		batch[i], batch[j] = batch[j], batch[i]
	}
	return storage.NewBasePage(numUserCols, batch)
}

// IsFull indique que la range détient déjà MaxBasePagesInPageRange pages de
// base et que la dernière est pleine — capacité totale de
// config.NumRecordsInPageRange records de base.
func (pr *PageRange) IsFull() bool {
	return len(pr.basePages) == config.MaxBasePagesInPageRange && pr.basePages[len(pr.basePages)-1].IsFull()
}

// NumBasePages retourne le nombre de pages de base actuellement allouées.
func (pr *PageRange) NumBasePages() int {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return len(pr.basePages)
}

// InsertRecord route vers la dernière page de base non pleine, en en créant
// une nouvelle si besoin (jusqu'à la limite de 16), et clôt le cycle
// d'indirection dès l'insertion.
func (pr *PageRange) InsertRecord(columns []int64) (int64, error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if pr.IsFull() {
		return config.InvalidRID, ErrRangeFull
	}

	base := pr.basePages[len(pr.basePages)-1]
	if base.IsFull() {
		if len(pr.basePages) >= config.MaxBasePagesInPageRange {
			return config.InvalidRID, ErrRangeFull
		}
		base = newBasePage(pr.numUserCols, pr.alloc)
		pr.basePages = append(pr.basePages, base)
	}

	newRID, slot, err := base.InsertRecord(columns)
	if err != nil {
		return config.InvalidRID, err
	}
	pr.dir.InsertPage(newRID, base, slot)
	return newRID, nil
}

// UpdateRecord construit un record de tail cumulatif pour baseRID : il
// résout la dernière version, calcule le bitmap de colonnes modifiées,
// matérialise toutes les valeurs (modifiées ou héritées), l'ajoute à la
// dernière page de tail, puis réécrit en place l'indirection du record de
// base. columnsToUpdate[i] == nil signifie "conserver la valeur actuelle".
func (pr *PageRange) UpdateRecord(baseRID int64, columnsToUpdate []*int64) (int64, error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if len(columnsToUpdate) != pr.numUserCols {
		return config.InvalidRID, storage.ErrContractViolation
	}

	latestPage, latestSlot, latestRID, err := pr.latestRecordDetailsLocked(baseRID)
	if err != nil {
		return config.InvalidRID, err
	}
	latest := make([]int64, pr.numUserCols)
	for i := 0; i < pr.numUserCols; i++ {
		latest[i] = latestPage.ReadColumn(i, latestSlot)
	}

	tailPage := pr.tailPages[len(pr.tailPages)-1]
	if tailPage.IsFull() {
		tailPage = storage.NewTailPage(pr.numUserCols, pr.alloc.NextTailBatch())
		pr.tailPages = append(pr.tailPages, tailPage)
	}

	newCols := make([]int64, pr.numUserCols)
	var mask int64
	for i := 0; i < pr.numUserCols; i++ {
		if columnsToUpdate[i] != nil {
			newCols[i] = *columnsToUpdate[i]
			// colonne 0 = bit de poids fort, convention ''.join+int(.,2) de la source.
			mask |= 1 << uint(pr.numUserCols-1-i)
		} else {
			newCols[i] = latest[i]
		}
	}

	tailRID, tailSlot, err := tailPage.InsertVersion(newCols, mask)
	if err != nil {
		return config.InvalidRID, err
	}
	// L'indirection du nouveau tail pointe vers l'ancienne tête de chaîne
	// (latestRID), refermant base → …nouveau tail… → ancienne tête → … → base.
	tailPage.UpdateIndirection(tailSlot, latestRID)
	pr.dir.InsertPage(tailRID, tailPage, tailSlot)

	baseLoc, ok := pr.dir.GetPage(baseRID)
	if !ok {
		return config.InvalidRID, fmt.Errorf("pagerange: base rid %d not found", baseRID)
	}
	baseLoc.Page.UpdateIndirection(baseLoc.Slot, tailRID)

	return tailRID, nil
}

// GetLatestColumnValue résout la dernière version de baseRID en une seule
// indirection puis lit la colonne demandée — O(1).
func (pr *PageRange) GetLatestColumnValue(baseRID int64, col int) (int64, error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	page, slot, _, err := pr.latestRecordDetailsLocked(baseRID)
	if err != nil {
		return 0, err
	}
	return page.ReadColumn(col, slot), nil
}

// VersionedRID résout le RID de la version relative demandée : hops=0 est la
// dernière version, hops=1 la version précédente, etc. Un hops supérieur à la
// profondeur de la chaîne retombe sur le record de base (propriété testable
// §8.2 du cahier des charges).
func (pr *PageRange) VersionedRID(baseRID int64, hops int) (int64, error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	curr := baseRID
	for i := 0; i <= hops; i++ {
		loc, ok := pr.dir.GetPage(curr)
		if !ok {
			return config.InvalidRID, fmt.Errorf("pagerange: rid %d not found", curr)
		}
		next := loc.Page.ReadColumn(int(storage.ColIndirection), loc.Slot)
		if next == baseRID {
			curr = baseRID
			break
		}
		curr = next
	}
	return curr, nil
}

// GetTailChain retourne la chaîne complète à partir du record de base :
// d'abord le record de base lui-même, puis chaque version de tail de la plus
// récente à la plus ancienne, en s'arrêtant quand l'indirection revient au
// RID de base (clôture du cycle). Utilisé par les tests et par un futur merge.
func (pr *PageRange) GetTailChain(baseRID int64) ([]TailVersion, error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	var chain []TailVersion
	curr := baseRID
	for {
		loc, ok := pr.dir.GetPage(curr)
		if !ok {
			return nil, fmt.Errorf("pagerange: rid %d not found", curr)
		}
		cols := make([]int64, pr.numUserCols)
		for i := 0; i < pr.numUserCols; i++ {
			cols[i] = loc.Page.ReadColumn(i, loc.Slot)
		}
		chain = append(chain, TailVersion{RID: curr, Columns: cols})

		next := loc.Page.ReadColumn(int(storage.ColIndirection), loc.Slot)
		if next == baseRID {
			break
		}
		curr = next
	}
	return chain, nil
}

// ReadColumnAt lit la colonne col d'un RID précis (base ou tail), sans
// résolution de version — utilisé par Table pour projeter une version déjà
// résolue par VersionedRID.
func (pr *PageRange) ReadColumnAt(r int64, col int) (int64, error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	loc, ok := pr.dir.GetPage(r)
	if !ok {
		return 0, fmt.Errorf("pagerange: rid %d not found", r)
	}
	return loc.Page.ReadColumn(col, loc.Slot), nil
}

func (pr *PageRange) latestRecordDetailsLocked(baseRID int64) (storage.LogicalPage, int, int64, error) {
	baseLoc, ok := pr.dir.GetPage(baseRID)
	if !ok {
		return nil, 0, 0, fmt.Errorf("pagerange: base rid %d not found", baseRID)
	}
	indir := baseLoc.Page.ReadColumn(int(storage.ColIndirection), baseLoc.Slot)
	if indir == baseRID {
		return baseLoc.Page, baseLoc.Slot, baseRID, nil
	}
	latestLoc, ok := pr.dir.GetPage(indir)
	if !ok {
		return nil, 0, 0, fmt.Errorf("pagerange: tail rid %d not found", indir)
	}
	return latestLoc.Page, latestLoc.Slot, indir, nil
}
