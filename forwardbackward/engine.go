// Package forwardbackward implements the scaled forward-backward
// algorithm over a time-inhomogeneous Hidden Markov Model: a streaming
// forward pass with per-step scaling, plus an on-demand backward pass
// used to compute smoothing posteriors p(s_t | o_1..o_T).
//
// The candidate set, emission table and transition table may all change
// from step to step; the caller supplies them fresh at every call to
// NextStep. Probabilities throughout this package are linear, not log.
package forwardbackward

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/LdDl/viterbi/hmm"
	"github.com/LdDl/viterbi/hmmerr"
	"github.com/LdDl/viterbi/hmmnum"
	"github.com/LdDl/viterbi/orderedmap"
)

type engineState int

const (
	stateEmpty engineState = iota
	stateRunning
)

// step is the record kept for every completed step; it is retained for
// the life of the engine because the backward pass needs to walk it.
type step[S comparable, O any] struct {
	observation O
	candidates  []S
	emission    map[S]float64
	transition  map[hmm.TransitionKey[S]]float64
	forward     *orderedmap.OrderedMap[S, float64]
	scaling     float64
}

// Engine is a single-use streaming forward-backward instance over state
// type S and observation type O. The zero value is not usable; use New.
type Engine[S comparable, O any] struct {
	state  engineState
	steps  []*step[S, O]
	logger *zap.Logger
}

// Option configures an Engine at construction time.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger attaches a zap logger for Debug/Warn diagnostics. Nil-safe:
// omitting this option defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New returns an empty forward-backward engine.
func New[S comparable, O any](opts ...Option) *Engine[S, O] {
	cfg := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine[S, O]{logger: cfg.logger}
}

// StartWithInitialStateProbabilities initializes the engine from an
// already-normalized initial distribution over states. The supplied
// probs must sum to 1 within hmmnum.Tolerance or ErrInvalidProbabilities
// is returned.
func (e *Engine[S, O]) StartWithInitialStateProbabilities(states []S, probs map[S]float64) error {
	if e.state != stateEmpty {
		return errors.WithStack(hmmerr.ErrAlreadyStarted)
	}
	values := make([]float64, 0, len(states))
	forward := orderedmap.NewWithCapacity[S, float64](len(states))
	for _, s := range states {
		p, ok := probs[s]
		if !ok {
			return errors.Wrapf(hmmerr.ErrMissingProbability, "initial probability for state %v", s)
		}
		values = append(values, p)
		forward.Set(s, p)
	}
	if !hmmnum.SumsToOne(values, hmmnum.Tolerance) {
		return errors.WithStack(hmmerr.ErrInvalidProbabilities)
	}
	e.steps = append(e.steps, &step[S, O]{
		candidates: append([]S(nil), states...),
		forward:    forward,
		scaling:    1,
	})
	e.state = stateRunning
	e.logger.Debug("forwardbackward: started from initial state probabilities", zap.Int("states", len(states)))
	return nil
}

// StartWithInitialObservation initializes the engine by treating the
// supplied emission values as an unnormalized initial forward vector,
// scaling them to sum to 1. No sum-to-one precondition is checked on the
// input: unlike StartWithInitialStateProbabilities, this entry point is
// by design fed raw, unnormalized emission weights.
func (e *Engine[S, O]) StartWithInitialObservation(obs O, candidates []S, emissionProbs map[S]float64) error {
	if e.state != stateEmpty {
		return errors.WithStack(hmmerr.ErrAlreadyStarted)
	}
	unnorm := make([]float64, len(candidates))
	c0 := 0.0
	for i, c := range candidates {
		p, ok := emissionProbs[c]
		if !ok {
			return errors.Wrapf(hmmerr.ErrMissingProbability, "initial emission for candidate %v", c)
		}
		unnorm[i] = p
		c0 += p
	}
	if c0 <= 0 {
		return errors.Wrap(hmmerr.ErrInvalidProbabilities, "zero scaling divisor at initial step")
	}
	forward := orderedmap.NewWithCapacity[S, float64](len(candidates))
	for i, c := range candidates {
		forward.Set(c, unnorm[i]/c0)
	}
	e.steps = append(e.steps, &step[S, O]{
		observation: obs,
		candidates:  append([]S(nil), candidates...),
		emission:    cloneMap(emissionProbs),
		forward:     forward,
		scaling:     c0,
	})
	e.state = stateRunning
	e.logger.Debug("forwardbackward: started from initial observation", zap.Int("candidates", len(candidates)))
	return nil
}

// NextStep advances the forward pass by one step.
func (e *Engine[S, O]) NextStep(obs O, candidates []S, emissionProbs map[S]float64, transitionProbs map[hmm.TransitionKey[S]]float64) error {
	if e.state != stateRunning {
		return errors.WithStack(hmmerr.ErrNotStarted)
	}
	prev := e.steps[len(e.steps)-1]

	unnorm := make([]float64, len(candidates))
	ct := 0.0
	for i, cur := range candidates {
		emit, ok := emissionProbs[cur]
		if !ok {
			return errors.Wrapf(hmmerr.ErrMissingProbability, "emission for candidate %v", cur)
		}
		sum := 0.0
		for _, p := range prev.candidates {
			fp, ok := prev.forward.Get(p)
			if !ok {
				continue
			}
			tp := transitionProbs[hmm.TransitionKey[S]{From: p, To: cur}]
			sum += fp * tp
		}
		u := emit * sum
		unnorm[i] = u
		ct += u
	}
	if ct <= 0 {
		e.logger.Warn("forwardbackward: degenerate step, zero scaling divisor", zap.Int("step", len(e.steps)))
		return errors.Wrap(hmmerr.ErrInvalidProbabilities, "zero scaling divisor")
	}

	forward := orderedmap.NewWithCapacity[S, float64](len(candidates))
	for i, cur := range candidates {
		forward.Set(cur, unnorm[i]/ct)
	}
	e.steps = append(e.steps, &step[S, O]{
		observation: obs,
		candidates:  append([]S(nil), candidates...),
		emission:    cloneMap(emissionProbs),
		transition:  cloneTransitionMap(transitionProbs),
		forward:     forward,
		scaling:     ct,
	})
	e.logger.Debug("forwardbackward: step committed", zap.Int("step", len(e.steps)-1), zap.Float64("scaling", ct))
	return nil
}

// ForwardProbability returns p(state | o_1..o_t) as recorded at step t.
func (e *Engine[S, O]) ForwardProbability(t int, state S) (float64, error) {
	if e.state != stateRunning {
		return 0, errors.WithStack(hmmerr.ErrNotStarted)
	}
	if t < 0 || t >= len(e.steps) {
		return 0, errors.WithStack(hmmerr.ErrIndexOutOfRange)
	}
	p, _ := e.steps[t].forward.Get(state)
	return p, nil
}

// CurrentForwardProbability returns the forward probability of state at
// the most recently completed step, or 0 if the engine hasn't started.
func (e *Engine[S, O]) CurrentForwardProbability(state S) float64 {
	if len(e.steps) == 0 {
		return 0
	}
	p, _ := e.steps[len(e.steps)-1].forward.Get(state)
	return p
}

// ObservationLogProbability returns Sum_t log(c_t), the log evidence of
// the observed sequence under the supplied tables.
func (e *Engine[S, O]) ObservationLogProbability() float64 {
	total := 0.0
	for _, s := range e.steps {
		total += logOf(s.scaling)
	}
	return total
}

// StepCount returns the number of completed steps (including the
// initialization step).
func (e *Engine[S, O]) StepCount() int {
	return len(e.steps)
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneTransitionMap[S comparable](m map[hmm.TransitionKey[S]]float64) map[hmm.TransitionKey[S]]float64 {
	out := make(map[hmm.TransitionKey[S]]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
