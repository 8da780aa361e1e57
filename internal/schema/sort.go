package schema

// SortTablesByDependencies orders tables so that referenced tables come before
// the tables referencing them. References to tables outside the slice are
// ignored. Cycles are broken with a score: fewer unresolved references wins,
// tables sitting on a two-table cycle get a bonus, and names break ties.
func SortTablesByDependencies(tables []*TableSchema) []*TableSchema {
	byName := ByName(tables)
	deps := make(map[string][]string, len(tables))
	for _, t := range tables {
		for _, d := range t.Dependencies() {
			if _, ok := byName[d]; ok {
				deps[t.Name] = append(deps[t.Name], d)
			}
		}
	}

	sorted := make([]*TableSchema, 0, len(tables))
	processed := make(map[string]bool, len(tables))

	for len(sorted) < len(tables) {
		added := false

		// Pass 1: tables whose dependencies are all placed
		for _, t := range tables {
			if processed[t.Name] {
				continue
			}
			ready := true
			for _, d := range deps[t.Name] {
				if !processed[d] {
					ready = false
					break
				}
			}
			if ready {
				sorted = append(sorted, t)
				processed[t.Name] = true
				added = true
			}
		}

		if added {
			continue
		}

		// Pass 2: cycle, place the best-scoring table
		var best *TableSchema
		bestScore := 0
		for _, t := range tables {
			if processed[t.Name] {
				continue
			}
			score := 0
			for _, d := range deps[t.Name] {
				if processed[d] {
					continue
				}
				score -= 100
				for _, back := range deps[d] {
					if back == t.Name {
						score += 500
						break
					}
				}
			}
			if best == nil || score > bestScore || (score == bestScore && t.Name < best.Name) {
				best = t
				bestScore = score
			}
		}
		sorted = append(sorted, best)
		processed[best.Name] = true
	}

	return sorted
}

// Reverse returns tables in reverse order, for drops.
func Reverse(tables []*TableSchema) []*TableSchema {
	out := make([]*TableSchema, len(tables))
	for i, t := range tables {
		out[len(tables)-1-i] = t
	}
	return out
}
