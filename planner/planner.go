// Package planner implémente le composant qui rend le parallélisme possible
// sans verrous d'enregistrement : il répartit une liste de transactions en
// groupes dont les clés primaires sont deux à deux disjointes, pour que
// l'executor puisse faire tourner chaque groupe sur son propre worker sans
// qu'aucun ne touche jamais le même RID de base qu'un autre en même temps
// (cahier des charges §4.8 et §5).
package planner

import "github.com/Felmond13/lstoredb/txn"

// Plan partitionne transactions en au plus numThreads files, une par groupe
// de partitions non vide. Chaque transaction est
// assignée à la partition key mod numThreads de sa première clé touchée ;
// une transaction qui touche des clés tombant dans plusieurs partitions
// fusionne ces partitions entre elles (un "groupe de conflit") pour que deux
// workers ne se disputent jamais le même RID.
func Plan(transactions []*txn.Transaction, numThreads int) [][]*txn.Transaction {
	if numThreads <= 0 {
		numThreads = 1
	}

	// union-find sur les numThreads partitions : deux partitions touchées
	// par la même transaction doivent fusionner dans le même groupe.
	parent := make([]int, numThreads)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	txPartitions := make([][]int, len(transactions))
	for i, tx := range transactions {
		seen := make(map[int]bool)
		var parts []int
		for _, key := range tx.Keys {
			p := partitionOf(key, numThreads)
			if !seen[p] {
				seen[p] = true
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			parts = []int{0}
		}
		for i := 1; i < len(parts); i++ {
			union(parts[0], parts[i])
		}
		txPartitions[i] = parts
	}

	groups := make(map[int][]*txn.Transaction)
	for i, tx := range transactions {
		root := find(txPartitions[i][0])
		groups[root] = append(groups[root], tx)
	}

	queues := make([][]*txn.Transaction, 0, len(groups))
	for _, g := range groups {
		queues = append(queues, g)
	}
	return queues
}

func partitionOf(key int64, numThreads int) int {
	p := key % int64(numThreads)
	if p < 0 {
		p += int64(numThreads)
	}
	return int(p)
}
