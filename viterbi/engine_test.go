package viterbi

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/viterbi/hmm"
	"github.com/LdDl/viterbi/hmmerr"
)

type twoState string

const (
	stateA twoState = "A"
	stateB twoState = "B"
)

type twoObs string

const obs1 twoObs = "o1"

func logf(p float64) float64 { return math.Log(p) }

// TestTrivialTwoStateSingleStep covers a single step where A wins on
// the prior alone (both emissions are equal).
func TestTrivialTwoStateSingleStep(t *testing.T) {
	// Folding prior 0.6/0.4 and an emission of 0.5/0.5 into a single
	// initial-observation step: A wins purely on the prior.
	e := New[twoState, twoObs, struct{}](NewConfig())
	require.NoError(t, e.StartWithInitialObservation(obs1, []twoState{stateA, stateB}, map[twoState]float64{
		stateA: logf(0.6) + logf(0.5),
		stateB: logf(0.4) + logf(0.5),
	}))

	seq := e.ComputeMostLikelySequence()
	require.Len(t, seq, 1)
	assert.Equal(t, stateA, seq[0].State)
}

// TestHMMBreak covers a transition table that yields no finite path at
// step 2: the engine latches Broken, and retrieval still returns the
// best sequence through step 1.
func TestHMMBreak(t *testing.T) {
	e := New[twoState, twoObs, struct{}](NewConfig())
	states := []twoState{stateA, stateB}
	require.NoError(t, e.StartWithInitialObservation(obs1, states, map[twoState]float64{
		stateA: logf(0.6), stateB: logf(0.4),
	}))

	require.NoError(t, e.NextStep(obs1, states, map[twoState]float64{
		stateA: logf(0.5), stateB: logf(0.5),
	}, map[hmm.TransitionKey[twoState]]float64{
		{From: stateA, To: stateA}: logf(0.7),
		{From: stateA, To: stateB}: logf(0.3),
		{From: stateB, To: stateA}: logf(0.4),
		{From: stateB, To: stateB}: logf(0.6),
	}, nil))
	assert.False(t, e.IsBroken())

	err := e.NextStep(obs1, states, map[twoState]float64{
		stateA: logf(0.5), stateB: logf(0.5),
	}, map[hmm.TransitionKey[twoState]]float64{}, nil)
	require.NoError(t, err)
	assert.True(t, e.IsBroken())

	seq := e.ComputeMostLikelySequence()
	require.Len(t, seq, 2)

	err = e.NextStep(obs1, states, map[twoState]float64{stateA: 0, stateB: 0}, nil, nil)
	assert.ErrorIs(t, err, hmmerr.ErrEngineBroken)
}

func TestTransitionDescriptorAttachedToWinningTransition(t *testing.T) {
	e := New[twoState, twoObs, string](NewConfig())
	states := []twoState{stateA, stateB}
	require.NoError(t, e.StartWithInitialObservation(obs1, states, map[twoState]float64{
		stateA: logf(0.6), stateB: logf(0.4),
	}))

	descriptors := map[hmm.TransitionKey[twoState]]string{
		{From: stateA, To: stateA}: "AA",
		{From: stateA, To: stateB}: "AB",
		{From: stateB, To: stateA}: "BA",
		{From: stateB, To: stateB}: "BB",
	}
	transitions := map[hmm.TransitionKey[twoState]]float64{
		{From: stateA, To: stateA}: logf(0.1),
		{From: stateA, To: stateB}: logf(0.9),
		{From: stateB, To: stateA}: logf(0.1),
		{From: stateB, To: stateB}: logf(0.1),
	}
	require.NoError(t, e.NextStep(obs1, states, map[twoState]float64{
		stateA: logf(0.5), stateB: logf(0.5),
	}, transitions, descriptors))

	seq := e.ComputeMostLikelySequence()
	require.Len(t, seq, 2)
	assert.True(t, seq[1].HasTransitionDescriptor)
	assert.Equal(t, "AB", seq[1].TransitionDescriptor)
	assert.False(t, seq[0].HasTransitionDescriptor)
}

// TestTieBreakingFirstSeenWins verifies that when two predecessors yield
// an identical log-probability at a successor state, the predecessor
// listed first in iteration order wins the back pointer.
func TestTieBreakingFirstSeenWins(t *testing.T) {
	e := New[twoState, twoObs, struct{}](NewConfig())
	// List B before A at step 0, with an identical message value for
	// both: the tie for the step-1 winner must go to whichever
	// predecessor appears first in this order (B), not to A.
	reversed := []twoState{stateB, stateA}
	require.NoError(t, e.StartWithInitialObservation(obs1, reversed, map[twoState]float64{
		stateA: logf(0.5), stateB: logf(0.5),
	}))

	forward := []twoState{stateA, stateB}
	require.NoError(t, e.NextStep(obs1, forward, map[twoState]float64{
		stateA: logf(0.5), stateB: logf(0.5),
	}, map[hmm.TransitionKey[twoState]]float64{
		{From: stateA, To: stateA}: logf(0.5),
		{From: stateB, To: stateA}: logf(0.5),
		{From: stateA, To: stateB}: math.Inf(-1),
		{From: stateB, To: stateB}: math.Inf(-1),
	}, nil))

	bp := e.BackPointers()
	chain, ok := bp[stateA]
	require.True(t, ok)
	require.Len(t, chain.States, 2)
	assert.Equal(t, stateB, chain.States[1], "predecessor listed first in step-0 order (B) must win the tie")
}

// TestBackPointerWalkReproducesSequence verifies that walking back
// pointers from the returned last state reproduces the returned states
// in reverse.
func TestBackPointerWalkReproducesSequence(t *testing.T) {
	e := New[twoState, twoObs, struct{}](NewConfig())
	states := []twoState{stateA, stateB}
	require.NoError(t, e.StartWithInitialObservation(obs1, states, map[twoState]float64{
		stateA: logf(0.6), stateB: logf(0.4),
	}))
	trans := map[hmm.TransitionKey[twoState]]float64{
		{From: stateA, To: stateA}: logf(0.7),
		{From: stateA, To: stateB}: logf(0.3),
		{From: stateB, To: stateA}: logf(0.4),
		{From: stateB, To: stateB}: logf(0.6),
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, e.NextStep(obs1, states, map[twoState]float64{
			stateA: logf(0.5), stateB: logf(0.5),
		}, trans, nil))
	}

	seq := e.ComputeMostLikelySequence()
	require.Len(t, seq, 6)

	bp := e.BackPointers()
	last := seq[len(seq)-1].State
	chain := bp[last].States
	require.Len(t, chain, len(seq))
	for i, s := range chain {
		assert.Equal(t, seq[len(seq)-1-i].State, s)
	}
}

// TestDeterminism verifies that identical inputs produce bit-identical
// outputs across two independent runs.
func TestDeterminism(t *testing.T) {
	build := func() *Engine[twoState, twoObs, struct{}] {
		e := New[twoState, twoObs, struct{}](NewConfig())
		states := []twoState{stateA, stateB}
		_ = e.StartWithInitialObservation(obs1, states, map[twoState]float64{stateA: logf(0.6), stateB: logf(0.4)})
		trans := map[hmm.TransitionKey[twoState]]float64{
			{From: stateA, To: stateA}: logf(0.7),
			{From: stateA, To: stateB}: logf(0.3),
			{From: stateB, To: stateA}: logf(0.4),
			{From: stateB, To: stateB}: logf(0.6),
		}
		for i := 0; i < 4; i++ {
			_ = e.NextStep(obs1, states, map[twoState]float64{stateA: logf(0.5), stateB: logf(0.5)}, trans, nil)
		}
		return e
	}
	a := build().ComputeMostLikelySequence()
	b := build().ComputeMostLikelySequence()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("two runs over identical inputs diverged (-a +b):\n%s", diff)
	}
}

// TestBackPointerReclamation verifies that when the lattice collapses
// onto fewer surviving chains, unreachable prefixes stop being counted
// as live nodes.
func TestBackPointerReclamation(t *testing.T) {
	e := New[twoState, twoObs, struct{}](NewConfig())
	states := []twoState{stateA, stateB}
	require.NoError(t, e.StartWithInitialObservation(obs1, states, map[twoState]float64{
		stateA: logf(0.5), stateB: logf(0.5),
	}))
	require.Equal(t, 2, e.LiveNodeCount())

	// A dominates so heavily that every subsequent step's winner traces
	// back through A only: B's step-0 node becomes unreachable once step
	// 1 commits, and should be collected rather than retained forever.
	trans := map[hmm.TransitionKey[twoState]]float64{
		{From: stateA, To: stateA}: logf(0.99),
		{From: stateA, To: stateB}: logf(0.01),
		{From: stateB, To: stateA}: logf(0.99),
		{From: stateB, To: stateB}: logf(0.01),
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, e.NextStep(obs1, states, map[twoState]float64{
			stateA: logf(0.9), stateB: logf(0.1),
		}, trans, nil))
	}
	// Without reclamation, 11 steps * 2 states would keep 22 nodes alive.
	// With reclamation the only surviving ancestry is the single A-chain
	// plus whatever the current step's B node still points at.
	assert.Less(t, e.LiveNodeCount(), 22)
}

func TestMessageHistoryOnlyWhenConfigured(t *testing.T) {
	off := New[twoState, twoObs, struct{}](NewConfig())
	states := []twoState{stateA, stateB}
	require.NoError(t, off.StartWithInitialObservation(obs1, states, map[twoState]float64{stateA: logf(0.5), stateB: logf(0.5)}))
	assert.Nil(t, off.MessageHistory())

	on := New[twoState, twoObs, struct{}](NewConfig().WithMessageHistory())
	require.NoError(t, on.StartWithInitialObservation(obs1, states, map[twoState]float64{stateA: logf(0.5), stateB: logf(0.5)}))
	assert.Len(t, on.MessageHistory(), 1)
}

func TestEmptyEngineSequenceIsEmpty(t *testing.T) {
	e := New[twoState, twoObs, struct{}](NewConfig())
	assert.Nil(t, e.ComputeMostLikelySequence())
}

func TestSmoothingHandOffAttachesPosteriors(t *testing.T) {
	e := New[twoState, twoObs, struct{}](NewConfig().WithSmoothingProbabilities())
	states := []twoState{stateA, stateB}
	require.NoError(t, e.StartWithInitialStateProbabilities(states, map[twoState]float64{
		stateA: logf(0.5), stateB: logf(0.5),
	}))
	trans := map[hmm.TransitionKey[twoState]]float64{
		{From: stateA, To: stateA}: logf(0.7),
		{From: stateA, To: stateB}: logf(0.3),
		{From: stateB, To: stateA}: logf(0.3),
		{From: stateB, To: stateB}: logf(0.7),
	}
	obsSeq := []map[twoState]float64{
		{stateA: logf(0.9), stateB: logf(0.2)},
		{stateA: logf(0.9), stateB: logf(0.2)},
	}
	for _, em := range obsSeq {
		require.NoError(t, e.NextStep(obs1, states, em, trans, nil))
	}

	seq := e.ComputeMostLikelySequence()
	for _, entry := range seq {
		require.NotNil(t, entry.SmoothingProbability)
		assert.GreaterOrEqual(t, *entry.SmoothingProbability, -1e-8)
		assert.LessOrEqual(t, *entry.SmoothingProbability, 1+1e-8)
	}
}
