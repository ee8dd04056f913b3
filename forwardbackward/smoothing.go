package forwardbackward

import "github.com/LdDl/viterbi/orderedmap"

// ComputeSmoothingProbabilities runs the backward pass from the last
// completed step to the first and returns one posterior vector per step,
// each ordered the same way that step's candidates were ordered. The
// backward recurrence divides by the *next* step's scaling divisor,
// which is what makes forward_t * beta_t already normalized without a
// separate post-pass division.
func (e *Engine[S, O]) ComputeSmoothingProbabilities() []*orderedmap.OrderedMap[S, float64] {
	n := len(e.steps)
	if n == 0 {
		return nil
	}

	betas := make([]*orderedmap.OrderedMap[S, float64], n)
	last := e.steps[n-1]
	betaT := orderedmap.NewWithCapacity[S, float64](len(last.candidates))
	for _, s := range last.candidates {
		betaT.Set(s, 1.0)
	}
	betas[n-1] = betaT

	for t := n - 2; t >= 0; t-- {
		cur := e.steps[t]
		next := e.steps[t+1]
		betaNext := betas[t+1]
		betaCur := orderedmap.NewWithCapacity[S, float64](len(cur.candidates))
		for _, s := range cur.candidates {
			sum := 0.0
			for _, ns := range next.candidates {
				emit, ok := next.emission[ns]
				if !ok {
					continue
				}
				bn, _ := betaNext.Get(ns)
				tp := next.transition[transitionKey(s, ns)]
				sum += emit * bn * tp
			}
			betaCur.Set(s, sum/next.scaling)
		}
		betas[t] = betaCur
	}

	posteriors := make([]*orderedmap.OrderedMap[S, float64], n)
	for t, s := range e.steps {
		post := orderedmap.NewWithCapacity[S, float64](len(s.candidates))
		for _, state := range s.candidates {
			fv, _ := s.forward.Get(state)
			bv, _ := betas[t].Get(state)
			post.Set(state, fv*bv)
		}
		posteriors[t] = post
	}
	return posteriors
}
