package engine

import "sort"

// Rank splits results into viable and discarded sets. Viable results are
// ordered by risk-adjusted score, discarded ones by net profit, both
// descending. Equal keys keep their input order.
func Rank(results []Result) (viable, discarded []Result) {
	viable = make([]Result, 0, len(results))
	discarded = make([]Result, 0, len(results))
	for _, r := range results {
		if r.Status == StatusViable {
			viable = append(viable, r)
		} else {
			discarded = append(discarded, r)
		}
	}
	sort.SliceStable(viable, func(i, j int) bool {
		return viable[i].RiskAdjustedScore > viable[j].RiskAdjustedScore
	})
	sort.SliceStable(discarded, func(i, j int) bool {
		return discarded[i].NetProfit > discarded[j].NetProfit
	})
	return viable, discarded
}

// Champion returns the top viable result, if any.
func Champion(viable []Result) (Result, bool) {
	if len(viable) == 0 {
		return Result{}, false
	}
	return viable[0], true
}
