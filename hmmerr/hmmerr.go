// Package hmmerr defines the error taxonomy shared by the viterbi and
// forwardbackward engines. Every engine call that fails returns one of
// these sentinels, optionally wrapped with github.com/pkg/errors for
// call-site context; callers should match with errors.Is.
package hmmerr

import "errors"

var (
	// ErrNotStarted is returned when NextStep or a retrieval method is
	// called before the engine has been initialized.
	ErrNotStarted = errors.New("hmm: engine not started")

	// ErrAlreadyStarted is returned when a second initialization call is
	// attempted on an already-started engine.
	ErrAlreadyStarted = errors.New("hmm: engine already started")

	// ErrEngineBroken is returned when NextStep is called on a Viterbi
	// engine after an HMM break has latched.
	ErrEngineBroken = errors.New("hmm: engine is broken")

	// ErrInvalidProbabilities is returned when forward-backward initial
	// state probabilities do not sum to 1 within tolerance, and when a
	// forward-backward step's scaling divisor is zero or negative.
	ErrInvalidProbabilities = errors.New("hmm: initial probabilities do not sum to one")

	// ErrMissingProbability is returned when a candidate present in a
	// step's candidate list has no entry in the supplied emission table.
	ErrMissingProbability = errors.New("hmm: missing emission probability for candidate")

	// ErrIndexOutOfRange is returned by ForwardProbability when t falls
	// outside [0, steps-so-far).
	ErrIndexOutOfRange = errors.New("hmm: step index out of range")
)
