package executor

import (
	"testing"

	"github.com/Felmond13/lstoredb/index"
	"github.com/Felmond13/lstoredb/planner"
	"github.com/Felmond13/lstoredb/query"
	"github.com/Felmond13/lstoredb/table"
	"github.com/Felmond13/lstoredb/txn"
)

func TestExecuteRunsAllTransactionsAcrossWorkers(t *testing.T) {
	tbl := table.New("t", 2, 0, index.ArrayKind, false)
	defer tbl.Close()
	q := query.New(tbl)

	var txs []*txn.Transaction
	for k := int64(1); k <= 20; k++ {
		key := k
		tx := txn.New(key)
		tx.AddOperation(func(q *query.Query) bool { return q.Insert(key, key*10) })
		txs = append(txs, tx)
	}

	groups := planner.Plan(txs, 4)
	Execute(groups, q)

	for k := int64(1); k <= 20; k++ {
		records, ok := q.Select(k, 0, []int{1, 1})
		if !ok || records[0].Columns[1] != k*10 {
			t.Fatalf("key %d: expected value %d, got %+v (ok=%v)", k, k*10, records, ok)
		}
	}
}

func TestExecuteHandlesEmptyGroups(t *testing.T) {
	tbl := table.New("t", 1, 0, index.ArrayKind, false)
	defer tbl.Close()
	q := query.New(tbl)
	Execute([][]*txn.Transaction{{}, nil}, q)
}
