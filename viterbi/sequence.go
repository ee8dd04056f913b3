package viterbi

import (
	"math"

	"github.com/LdDl/viterbi/hmm"
)

// ComputeMostLikelySequence picks the state maximizing the current
// message (first-seen wins on ties) and walks its back-pointer chain
// back to the initial node, returning the chronological sequence of
// (state, observation, incoming transition descriptor).
//
// In the Empty state this returns an empty sequence. In the Broken
// state it returns the best sequence through the last step completed
// before the break.
func (e *Engine[S, O, D]) ComputeMostLikelySequence() []hmm.StateWithObservation[S, O, D] {
	if e.state == stateEmpty || e.message == nil || e.message.Len() == 0 {
		return nil
	}

	var best S
	bestLogProb := math.Inf(-1)
	found := false
	for _, s := range e.message.Keys() {
		p, _ := e.message.Get(s)
		if !found || p > bestLogProb {
			bestLogProb = p
			best = s
			found = true
		}
	}
	if !found {
		return nil
	}

	chain := make([]*node[S, O, D], 0)
	for n := e.lastExtended[best]; n != nil; n = n.prev {
		chain = append(chain, n)
	}
	// chain is tail-to-head (most recent step first); reverse it.
	seq := make([]hmm.StateWithObservation[S, O, D], len(chain))
	for i, n := range chain {
		out := hmm.StateWithObservation[S, O, D]{
			State:                   n.state,
			HasTransitionDescriptor: n.hasDescriptor,
		}
		if n.hasDescriptor {
			out.TransitionDescriptor = n.descriptor
		}
		if n.hasObservation {
			out.Observation = n.observation
		}
		seq[len(chain)-1-i] = out
	}

	if e.fb != nil {
		e.attachSmoothing(seq)
	}

	return seq
}

func (e *Engine[S, O, D]) attachSmoothing(seq []hmm.StateWithObservation[S, O, D]) {
	vectors := e.fb.ComputeSmoothingProbabilities()
	n := len(vectors)
	if n > len(seq) {
		n = len(seq)
	}
	for i := 0; i < n; i++ {
		if p, ok := vectors[i].Get(seq[i].State); ok {
			v := p
			seq[i].SmoothingProbability = &v
		}
	}
}
