package engine

import "time"

// newProgress computes percentage and a linear ETA from the rows written so
// far and the time spent writing them.
func newProgress(table string, current, total int64, elapsed time.Duration) Progress {
	p := Progress{Table: table, Current: current, Total: total}

	if total > 0 {
		p.Percentage = float64(current*100) / float64(total)
	} else if current > 0 {
		p.Percentage = 100
	}
	if p.Percentage > 100 {
		p.Percentage = 100
	}

	// (total-current) / (current/elapsed), rearranged to keep exact values exact
	if current > 0 && elapsed > 0 && total > current {
		p.EstimatedTimeRemaining = time.Duration(float64(elapsed) * float64(total-current) / float64(current))
	}
	return p
}
