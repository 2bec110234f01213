// Package executor lance un worker par groupe de transactions produit par
// le planificateur : chaque worker exécute sa file séquentiellement sur la
// Query partagée par tous les workers. Les clés des files étant disjointes,
// deux workers n'écrivent jamais le même record ; les écritures d'un worker
// sont en revanche visibles des autres dès qu'elles sont faites, pas
// seulement après le join.
// Grounded sur le style de répartition en goroutines indexées
// d'engine/hints.go (parallel scan worker pool).
package executor

import (
	"log"
	"sync"

	"github.com/Felmond13/lstoredb/query"
	"github.com/Felmond13/lstoredb/txn"
)

// Execute lance un goroutine par file de groups, chacune appelant q pour
// exécuter ses transactions dans l'ordre. Bloque jusqu'à ce que tous les
// workers aient terminé.
func Execute(groups [][]*txn.Transaction, q *query.Query) {
	var wg sync.WaitGroup
	for i, group := range groups {
		if len(group) == 0 {
			continue
		}
		wg.Add(1)
		go func(workerID int, txs []*txn.Transaction) {
			defer wg.Done()
			log.Printf("executor: worker %d starting, %d transactions", workerID, len(txs))
			for _, tx := range txs {
				if !tx.Run(q) {
					log.Printf("executor: worker %d transaction failed on keys %v", workerID, tx.Keys)
				}
			}
			log.Printf("executor: worker %d done", workerID)
		}(i, group)
	}
	wg.Wait()
}
