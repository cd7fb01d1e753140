package engine

import (
	"xrayd/pkg/types"
)

// aggregate combines the successful per-model results into one consensus.
// Tie-break order between labels with equally large groups: higher summed
// confidence, then the earliest registry position among each group's
// members. Deterministic and reproducible across runs.
//
// results must be in registry order, failures included; the returned
// ConsensusResult keeps the full breakdown.
func aggregate(results []types.ModelResult) (*types.ConsensusResult, error) {
	type group struct {
		label      string
		members    []int // indexes into results, ascending
		sumConf    float64
		firstIndex int
	}
	groups := make(map[string]*group)
	ordered := make([]*group, 0, 4) // insertion order = registry order of first member
	successes := 0
	for i, r := range results {
		if !r.OK {
			continue
		}
		successes++
		g, ok := groups[r.Label]
		if !ok {
			g = &group{label: r.Label, firstIndex: i}
			groups[r.Label] = g
			ordered = append(ordered, g)
		}
		g.members = append(g.members, i)
		g.sumConf += r.Confidence
	}
	if successes == 0 {
		return nil, ErrInsufficientModels(0, 1)
	}

	var win *group
	for _, g := range ordered {
		if win == nil {
			win = g
			continue
		}
		switch {
		case len(g.members) > len(win.members):
			win = g
		case len(g.members) == len(win.members) && g.sumConf > win.sumConf:
			win = g
		case len(g.members) == len(win.members) && g.sumConf == win.sumConf && g.firstIndex < win.firstIndex:
			win = g
		}
	}

	// Best model: highest individual confidence within the winning group;
	// earlier registry position wins an exact tie.
	best := win.members[0]
	for _, i := range win.members[1:] {
		if results[i].Confidence > results[best].Confidence {
			best = i
		}
	}

	return &types.ConsensusResult{
		Diagnosis:      win.label,
		Confidence:     win.sumConf / float64(len(win.members)),
		AgreementCount: len(win.members),
		BestModelID:    results[best].ModelID,
		Results:        results,
	}, nil
}
