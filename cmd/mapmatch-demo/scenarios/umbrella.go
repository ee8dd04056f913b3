package scenarios

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/LdDl/viterbi/forwardbackward"
	"github.com/LdDl/viterbi/hmm"
)

type weather string

const (
	rain weather = "Rain"
	sun  weather = "Sun"
)

type dayObservation string

const (
	umbrella   dayObservation = "umbrella"
	noUmbrella dayObservation = "no-umbrella"
)

// RunUmbrella reproduces the Wikipedia forward-backward worked example
// end to end and prints the smoothing posterior for Rain at every step.
func RunUmbrella(logger *zap.Logger) error {
	e := forwardbackward.New[weather, dayObservation](forwardbackward.WithLogger(logger))
	states := []weather{rain, sun}

	if err := e.StartWithInitialStateProbabilities(states, map[weather]float64{rain: 0.5, sun: 0.5}); err != nil {
		return err
	}

	transitions := map[hmm.TransitionKey[weather]]float64{
		{From: rain, To: rain}: 0.7,
		{From: rain, To: sun}:  0.3,
		{From: sun, To: rain}:  0.3,
		{From: sun, To: sun}:   0.7,
	}
	emission := func(obs dayObservation) map[weather]float64 {
		if obs == umbrella {
			return map[weather]float64{rain: 0.9, sun: 0.2}
		}
		return map[weather]float64{rain: 0.1, sun: 0.8}
	}

	for _, obs := range []dayObservation{umbrella, umbrella, noUmbrella, umbrella, umbrella} {
		if err := e.NextStep(obs, states, emission(obs), transitions); err != nil {
			return err
		}
	}

	fmt.Println("umbrella scenario: smoothing P(Rain) by step")
	for i, vec := range e.ComputeSmoothingProbabilities() {
		p, _ := vec.Get(rain)
		fmt.Printf("  step %d: %.4f\n", i, p)
	}
	fmt.Printf("  log observation probability: %.6f\n", e.ObservationLogProbability())
	return nil
}
