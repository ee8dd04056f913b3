// Package viterbi implements the Viterbi algorithm over a
// time-inhomogeneous Hidden Markov Model: a streaming forward pass that
// tracks, for every currently admissible state, the log-probability of
// the single best path ending there, plus a back-pointer chain that lets
// the winning sequence be recovered without keeping every historical
// message around.
//
// The candidate set, emission table, transition table and (optionally)
// transition-descriptor table may all change from step to step; the
// caller supplies them fresh at every call to NextStep. Probabilities
// throughout this package are log probabilities.
package viterbi

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/LdDl/viterbi/forwardbackward"
	"github.com/LdDl/viterbi/hmm"
	"github.com/LdDl/viterbi/hmmerr"
	"github.com/LdDl/viterbi/hmmnum"
	"github.com/LdDl/viterbi/orderedmap"
)

type engineState int

const (
	stateEmpty engineState = iota
	stateRunning
	stateBroken
)

// Engine is a single-use streaming Viterbi instance over state type S,
// observation type O and transition-descriptor type D. The zero value is
// not usable; use New.
type Engine[S comparable, O any, D any] struct {
	cfg    Config
	logger *zap.Logger

	state engineState

	message        *orderedmap.OrderedMap[S, float64]
	lastExtended   map[S]*node[S, O, D]
	prevCandidates []S
	messageHistory []*orderedmap.OrderedMap[S, float64]
	liveNodes      int

	fb *forwardbackward.Engine[S, O]
}

// Option configures an Engine at construction time, independent of Config
// (which controls algorithmic features; Option controls diagnostics).
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger attaches a zap logger for Debug/Warn diagnostics. Nil-safe:
// omitting this option defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New returns an empty Viterbi engine configured by cfg.
func New[S comparable, O any, D any](cfg Config, opts ...Option) *Engine[S, O, D] {
	ro := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&ro)
	}
	e := &Engine[S, O, D]{cfg: cfg, logger: ro.logger}
	if cfg.computeSmoothingProbabilities {
		e.fb = forwardbackward.New[S, O](forwardbackward.WithLogger(ro.logger))
	}
	return e
}

// StartWithInitialStateProbabilities seeds step 0 from a caller-supplied
// log-probability vector over initial states, in the given order. If
// every value is -Inf the engine latches Broken immediately.
func (e *Engine[S, O, D]) StartWithInitialStateProbabilities(states []S, initialLogProbs map[S]float64) error {
	if e.state != stateEmpty {
		return errors.WithStack(hmmerr.ErrAlreadyStarted)
	}
	message := orderedmap.NewWithCapacity[S, float64](len(states))
	allNegInf := true
	for _, s := range states {
		p, ok := initialLogProbs[s]
		if !ok {
			return errors.Wrapf(hmmerr.ErrMissingProbability, "initial log-probability for state %v", s)
		}
		message.Set(s, p)
		if !math.IsInf(p, -1) {
			allNegInf = false
		}
	}
	if allNegInf {
		e.latchBroken(states)
		return nil
	}

	lastExtended := make(map[S]*node[S, O, D], len(states))
	for _, s := range states {
		lastExtended[s] = newNode[S, O, D](&e.liveNodes, s)
	}

	e.commit(message, lastExtended, states)

	if e.fb != nil {
		linear := make(map[S]float64, len(states))
		for _, s := range states {
			p, _ := message.Get(s)
			linear[s] = math.Exp(p)
		}
		if err := e.fb.StartWithInitialStateProbabilities(states, linear); err != nil {
			e.logger.Debug("viterbi: smoothing hand-off skipped, initial probabilities not normalized", zap.Error(err))
			e.fb = nil
		}
	}
	return nil
}

// StartWithInitialObservation seeds step 0 from an initial observation
// and its per-candidate emission log-probabilities; this is equivalent
// to StartWithInitialStateProbabilities except every node additionally
// records the observation that produced it.
func (e *Engine[S, O, D]) StartWithInitialObservation(obs O, candidates []S, emissionLogProbs map[S]float64) error {
	if e.state != stateEmpty {
		return errors.WithStack(hmmerr.ErrAlreadyStarted)
	}
	message := orderedmap.NewWithCapacity[S, float64](len(candidates))
	allNegInf := true
	for _, s := range candidates {
		p, ok := emissionLogProbs[s]
		if !ok {
			return errors.Wrapf(hmmerr.ErrMissingProbability, "initial emission for candidate %v", s)
		}
		message.Set(s, p)
		if !math.IsInf(p, -1) {
			allNegInf = false
		}
	}
	if allNegInf {
		e.latchBroken(candidates)
		return nil
	}

	lastExtended := make(map[S]*node[S, O, D], len(candidates))
	for _, s := range candidates {
		n := newNode[S, O, D](&e.liveNodes, s)
		n.observation = obs
		n.hasObservation = true
		lastExtended[s] = n
	}

	e.commit(message, lastExtended, candidates)

	if e.fb != nil {
		linear := make(map[S]float64, len(candidates))
		for _, s := range candidates {
			p, _ := message.Get(s)
			linear[s] = math.Exp(p)
		}
		if err := e.fb.StartWithInitialObservation(obs, candidates, linear); err != nil {
			e.logger.Debug("viterbi: smoothing hand-off skipped", zap.Error(err))
			e.fb = nil
		}
	}
	return nil
}

func (e *Engine[S, O, D]) latchBroken(candidates []S) {
	e.state = stateBroken
	e.logger.Warn("viterbi: engine broken at initialization", zap.Int("candidates", len(candidates)))
}

func (e *Engine[S, O, D]) commit(message *orderedmap.OrderedMap[S, float64], lastExtended map[S]*node[S, O, D], candidates []S) {
	e.message = message
	e.lastExtended = lastExtended
	e.prevCandidates = append([]S(nil), candidates...)
	e.state = stateRunning
	if e.cfg.keepMessageHistory {
		e.messageHistory = append(e.messageHistory, message.Clone())
	}
}

// NextStep advances the forward pass by one step, given the observation,
// this step's candidate states, their emission log-probabilities, the
// transition log-probabilities from the previous step's candidates, and
// (optionally) transition descriptors for the winning transitions.
//
// Missing transition entries denote -Inf (zero probability), not an
// error. If every resulting message value is -Inf, the engine latches
// Broken: the previous message and back-pointer chains are preserved so
// that ComputeMostLikelySequence still returns the best path up to the
// last non-broken step.
func (e *Engine[S, O, D]) NextStep(obs O, candidates []S, emissionLogProbs map[S]float64, transitionLogProbs map[hmm.TransitionKey[S]]float64, transitionDescriptors map[hmm.TransitionKey[S]]D) error {
	if e.state == stateEmpty {
		return errors.WithStack(hmmerr.ErrNotStarted)
	}
	if e.state == stateBroken {
		return errors.WithStack(hmmerr.ErrEngineBroken)
	}

	newMessage := orderedmap.NewWithCapacity[S, float64](len(candidates))
	newLastExtended := make(map[S]*node[S, O, D], len(candidates))
	createdNodes := make([]*node[S, O, D], 0, len(candidates))
	allNegInf := true

	for _, cur := range candidates {
		emit, ok := emissionLogProbs[cur]
		if !ok {
			return errors.Wrapf(hmmerr.ErrMissingProbability, "emission for candidate %v", cur)
		}

		best := math.Inf(-1)
		var argmaxPrev S
		haveArgmax := false
		for _, prev := range e.prevCandidates {
			prevLogProb, ok := e.message.Get(prev)
			if !ok {
				continue
			}
			tp, ok := transitionLogProbs[hmm.TransitionKey[S]{From: prev, To: cur}]
			if !ok {
				tp = math.Inf(-1)
			}
			candidate := prevLogProb + tp
			if candidate > best {
				best = candidate
				argmaxPrev = prev
				haveArgmax = true
			}
		}

		newVal := best + emit
		newMessage.Set(cur, newVal)
		if !math.IsInf(newVal, -1) {
			allNegInf = false
		}

		if haveArgmax {
			prevNode := e.lastExtended[argmaxPrev]
			n := newNode[S, O, D](&e.liveNodes, cur)
			n.observation = obs
			n.hasObservation = true
			if transitionDescriptors != nil {
				if d, ok := transitionDescriptors[hmm.TransitionKey[S]{From: argmaxPrev, To: cur}]; ok {
					n.descriptor = d
					n.hasDescriptor = true
				}
			}
			n.prev = prevNode.retain()
			newLastExtended[cur] = n
			createdNodes = append(createdNodes, n)
		}
	}

	if allNegInf {
		for _, n := range createdNodes {
			n.release()
		}
		e.state = stateBroken
		e.logger.Warn("viterbi: hmm break latched", zap.Int("candidates", len(candidates)))
		return nil
	}

	oldLastExtended := e.lastExtended
	e.commit(newMessage, newLastExtended, candidates)
	for _, n := range oldLastExtended {
		n.release()
	}

	if e.fb != nil {
		linearEmission := make(map[S]float64, len(candidates))
		for s, v := range emissionLogProbs {
			linearEmission[s] = math.Exp(v)
		}
		linearTransition := make(map[hmm.TransitionKey[S]]float64, len(transitionLogProbs))
		for k, v := range transitionLogProbs {
			linearTransition[k] = math.Exp(v)
		}
		if err := e.fb.NextStep(obs, candidates, linearEmission, linearTransition); err != nil {
			e.logger.Debug("viterbi: smoothing hand-off step failed, disabling smoothing", zap.Error(err))
			e.fb = nil
		}
	}

	return nil
}

// IsBroken reports whether the engine has latched Broken.
func (e *Engine[S, O, D]) IsBroken() bool {
	return e.state == stateBroken
}

// MessageHistory returns the per-step message snapshots recorded so far,
// oldest first. It is only populated when Config.WithMessageHistory was
// used; otherwise it returns nil.
func (e *Engine[S, O, D]) MessageHistory() []*orderedmap.OrderedMap[S, float64] {
	return e.messageHistory
}

// hmmnum.Tolerance re-exported for callers building their own
// property checks against this engine's output.
const Tolerance = hmmnum.Tolerance
