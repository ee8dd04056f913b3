// Package hmm holds the vocabulary shared by the viterbi and
// forwardbackward engines: the transition key both engines use to index
// caller-supplied transition tables, and the per-step result record the
// Viterbi engine returns.
package hmm

// TransitionKey is an ordered pair (From, To) used as the key of a
// caller-supplied transition-probability or transition-descriptor table.
// Order matters: TransitionKey[S]{A, B} != TransitionKey[S]{B, A}. Since S
// is comparable, TransitionKey[S] is itself comparable and usable directly
// as a Go map key — both fields participate in equality and hashing.
type TransitionKey[S comparable] struct {
	From S
	To   S
}

// StateWithObservation is one entry of a retrieved Viterbi sequence: the
// chosen state at a step, the observation consumed there, and the
// transition descriptor of the incoming winning transition (the zero
// value of D at step 0, where there is no incoming transition).
//
// SmoothingProbability is non-nil only when the engine was configured with
// ComputeSmoothingProbabilities; it holds the forward-backward posterior
// for this state at this step.
type StateWithObservation[S comparable, O any, D any] struct {
	State                   S
	Observation             O
	TransitionDescriptor    D
	HasTransitionDescriptor bool
	SmoothingProbability    *float64
}
