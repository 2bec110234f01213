// Package rid implémente l'allocateur d'identifiants de records (RID).
//
// Deux compteurs monotones indépendants : un pour les RID de base (positifs,
// croissants) et un pour les RID de tail (négatifs, décroissants). Chaque page
// logique réserve un lot de config.MaxRecordsPerPage RID contigus, ce qui rend
// l'arithmétique RID → (page, slot) en O(1). Repris de rid.py de la source
// d'origine (RID_Generator), chaque flux protégé par son propre mutex pour que
// l'allocation de base et de tail ne se bloquent jamais mutuellement.
package rid

import (
	"sync"

	"github.com/Felmond13/lstoredb/config"
)

// Allocator distribue des lots de RID pour une table entière. Il est partagé
// par toutes les page ranges de la table.
type Allocator struct {
	baseMu   sync.Mutex
	tailMu   sync.Mutex
	nextBase int64
	nextTail int64
}

// NewAllocator crée un allocateur frais, prêt à distribuer depuis StartBaseRID
// et StartTailRID.
func NewAllocator() *Allocator {
	return &Allocator{
		nextBase: config.StartBaseRID,
		nextTail: config.StartTailRID,
	}
}

// NextBaseBatch réserve config.MaxRecordsPerPage RID de base consécutifs pour
// une nouvelle page de base. Le lot est retourné inversé (le plus petit RID en
// dernier), comme get_base_rids dans rid.py ; pagerange le remet dans l'ordre
// croissant avant de le confier à une page de base, afin que le premier
// insert consomme le plus petit identifiant.
func (a *Allocator) NextBaseBatch() []int64 {
	a.baseMu.Lock()
	defer a.baseMu.Unlock()

	start := a.nextBase
	batch := make([]int64, config.MaxRecordsPerPage)
	for i := 0; i < config.MaxRecordsPerPage; i++ {
		batch[config.MaxRecordsPerPage-1-i] = start + int64(i)
	}
	a.nextBase = start + config.MaxRecordsPerPage
	return batch
}

// NextTailBatch réserve config.MaxRecordsPerPage RID de tail consécutifs pour
// une nouvelle page de tail, dans l'ordre naturel décroissant.
func (a *Allocator) NextTailBatch() []int64 {
	a.tailMu.Lock()
	defer a.tailMu.Unlock()

	start := a.nextTail
	batch := make([]int64, config.MaxRecordsPerPage)
	for i := 0; i < config.MaxRecordsPerPage; i++ {
		batch[i] = start - int64(i)
	}
	a.nextTail = start - config.MaxRecordsPerPage
	return batch
}

// SlotOf retourne le slot (0..MaxRecordsPerPage-1) correspondant à un RID au
// sein de sa page, par (|rid|-1) mod MaxRecordsPerPage.
func SlotOf(r int64) int {
	abs := r
	if abs < 0 {
		abs = -abs
	}
	return int((abs - 1) % config.MaxRecordsPerPage)
}

// StartingRIDOf retourne le premier RID du lot de 512 auquel appartient r,
// en conservant le signe de r (sign(rid) × (((|rid|-1)/512)×512 + 1)).
func StartingRIDOf(r int64) int64 {
	abs := r
	neg := false
	if abs < 0 {
		abs = -abs
		neg = true
	}
	start := ((abs-1)/config.MaxRecordsPerPage)*config.MaxRecordsPerPage + 1
	if neg {
		return -start
	}
	return start
}

// PageRangeIndexOf dérive l'indice de page range contenant r à partir de la
// disposition par lots de l'allocateur, et non de `rid / NumRecordsInPageRange`
// appliqué brutalement (qui n'a pas de sens pour un RID négatif, et qui place
// le dernier RID de base de chaque page range, multiple de
// NumRecordsInPageRange, dans la range suivante — voir §9 du cahier des
// charges). Le calcul se fait uniquement sur les RID de base : les
// RID de tail n'ont pas de page range propre, ils vivent dans celle du record
// de base qu'ils versionnent.
func PageRangeIndexOf(baseRID int64) int {
	return int((baseRID - config.StartBaseRID) / config.NumRecordsInPageRange)
}
