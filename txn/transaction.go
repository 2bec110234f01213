// Package txn regroupe des opérations de query en unités ordonnées que le
// planificateur peut répartir entre workers sans verrous d'enregistrement —
// grounded sur le schéma d'orchestration de quecc_tester_part2.py, où une
// transaction est une séquence de lectures/écritures sur une Query, exécutée
// intégralement par un seul worker.
package txn

import "github.com/Felmond13/lstoredb/query"

// Operation est une étape de transaction : une closure fermée sur la Query
// cible, retournant false si l'étape échoue.
type Operation func(q *query.Query) bool

// Transaction est une liste ordonnée d'opérations et l'ensemble des clés
// primaires qu'elle touche — c'est cet ensemble que le planificateur utilise
// pour décider du partitionnement.
type Transaction struct {
	Keys []int64
	ops  []Operation
}

// New crée une transaction vide touchant les clés primaires données.
func New(keys ...int64) *Transaction {
	return &Transaction{Keys: keys}
}

// AddOperation ajoute une étape à la fin de la transaction.
func (t *Transaction) AddOperation(op Operation) {
	t.ops = append(t.ops, op)
}

// Run exécute les opérations dans l'ordre sur q, en s'arrêtant à la première
// qui échoue. Retourne false si une étape a échoué.
func (t *Transaction) Run(q *query.Query) bool {
	for _, op := range t.ops {
		if !op(q) {
			return false
		}
	}
	return true
}
