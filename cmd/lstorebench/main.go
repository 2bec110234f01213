// Command lstorebench exerce le planificateur et l'executor sur une charge
// d'insertions générée aléatoirement, à l'image de
// quecc_tester_part1.py : une table à 5 colonnes, des index secondaires sur
// les colonnes 2 à 4, des transactions groupées par le planificateur et
// exécutées en parallèle par l'executor.
//
// Usage: lstorebench [-records 1000] [-txns 100] [-threads 8]
package main

import (
	"flag"
	"log"
	"math/rand"
	"time"

	"github.com/Felmond13/lstoredb/executor"
	"github.com/Felmond13/lstoredb/index"
	"github.com/Felmond13/lstoredb/planner"
	"github.com/Felmond13/lstoredb/query"
	"github.com/Felmond13/lstoredb/table"
	"github.com/Felmond13/lstoredb/txn"
)

func main() {
	numRecords := flag.Int("records", 1000, "number of records to insert")
	numTransactions := flag.Int("txns", 100, "number of insert transactions to group the inserts into")
	numThreads := flag.Int("threads", 8, "number of worker goroutines")
	flag.Parse()

	tbl := table.New("Grades", 5, 0, index.ArrayKind, false)
	defer tbl.Close()
	q := query.New(tbl)

	for _, col := range []int{2, 3, 4} {
		if err := tbl.CreateIndex(col); err != nil {
			log.Printf("lstorebench: index on column %d not built: %v", col, err)
		}
	}

	rng := rand.New(rand.NewSource(3562901))
	transactions := make([]*txn.Transaction, *numTransactions)
	for i := range transactions {
		transactions[i] = txn.New()
	}

	startKey := int64(92106429)
	for i := 0; i < *numRecords; i++ {
		key := startKey + int64(i)
		columns := []int64{
			key,
			int64(rng.Intn(20) + i*20),
			int64(rng.Intn(20) + i*20),
			int64(rng.Intn(20) + i*20),
			int64(rng.Intn(20) + i*20),
		}
		tx := transactions[i%*numTransactions]
		tx.Keys = append(tx.Keys, key)
		tx.AddOperation(func(cols []int64) txn.Operation {
			return func(q *query.Query) bool { return q.Insert(cols...) }
		}(columns))
	}

	started := time.Now()
	groups := planner.Plan(transactions, *numThreads)
	executor.Execute(groups, q)
	log.Printf("lstorebench: inserted %d records via %d transactions across %d groups in %s",
		*numRecords, *numTransactions, len(groups), time.Since(started))
}
