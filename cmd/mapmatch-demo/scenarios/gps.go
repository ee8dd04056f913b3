package scenarios

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/LdDl/viterbi/examples/mapmatching"
	"github.com/LdDl/viterbi/hmm"
	"github.com/LdDl/viterbi/viterbi"
)

const (
	sigmaZ = 10.0 // GPS noise std-dev, meters
	beta   = 5.0  // route-detour decay rate, meters
)

// RunGPSMapMatch builds a tiny road-candidate lattice for three GPS
// fixes and prints the most likely matched sequence of edges, grounded
// on the point/edge-candidate shape of the teacher's TestFindPath.
func RunGPSMapMatch(logger *zap.Logger) error {
	fixes := []mapmatching.GPSFix{
		{Lat: 52.5200, Lon: 13.4050},
		{Lat: 52.5205, Lon: 13.4060},
		{Lat: 52.5210, Lon: 13.4075},
	}
	candidates := [][]mapmatching.RoadCandidate{
		{
			{EdgeID: "e1a", Lat: 52.5201, Lon: 13.4049},
			{EdgeID: "e1b", Lat: 52.5198, Lon: 13.4055},
		},
		{
			{EdgeID: "e2a", Lat: 52.5206, Lon: 13.4059},
			{EdgeID: "e2b", Lat: 52.5203, Lon: 13.4065},
		},
		{
			{EdgeID: "e3a", Lat: 52.5211, Lon: 13.4074},
			{EdgeID: "e3b", Lat: 52.5207, Lon: 13.4080},
		},
	}

	cfg := viterbi.NewConfig().WithMessageHistory().WithSmoothingProbabilities()
	e := viterbi.New[mapmatching.RoadCandidate, mapmatching.GPSFix, string](cfg, viterbi.WithLogger(logger))

	initialEmission := map[mapmatching.RoadCandidate]float64{}
	for _, c := range candidates[0] {
		initialEmission[c] = mapmatching.EmissionLogProbability(fixes[0], c, sigmaZ)
	}
	if err := e.StartWithInitialObservation(fixes[0], candidates[0], initialEmission); err != nil {
		return err
	}

	for i := 1; i < len(fixes); i++ {
		emission := map[mapmatching.RoadCandidate]float64{}
		for _, c := range candidates[i] {
			emission[c] = mapmatching.EmissionLogProbability(fixes[i], c, sigmaZ)
		}

		gc := mapmatching.HaversineMeters(fixes[i-1].Lat, fixes[i-1].Lon, fixes[i].Lat, fixes[i].Lon)
		transitions := map[hmm.TransitionKey[mapmatching.RoadCandidate]]float64{}
		descriptors := map[hmm.TransitionKey[mapmatching.RoadCandidate]]string{}
		for _, prev := range candidates[i-1] {
			for _, cur := range candidates[i] {
				route := mapmatching.HaversineMeters(prev.Lat, prev.Lon, cur.Lat, cur.Lon)
				key := hmm.TransitionKey[mapmatching.RoadCandidate]{From: prev, To: cur}
				transitions[key] = mapmatching.TransitionLogProbability(gc, route, beta)
				descriptors[key] = fmt.Sprintf("%s->%s", prev.EdgeID, cur.EdgeID)
			}
		}

		if err := e.NextStep(fixes[i], candidates[i], emission, transitions, descriptors); err != nil {
			return err
		}
	}

	fmt.Println("gps map-match scenario: most likely edge sequence")
	for _, entry := range e.ComputeMostLikelySequence() {
		smoothing := "n/a"
		if entry.SmoothingProbability != nil {
			smoothing = fmt.Sprintf("%.4f", *entry.SmoothingProbability)
		}
		fmt.Printf("  edge=%s via=%q smoothing=%s\n", entry.State.EdgeID, entry.TransitionDescriptor, smoothing)
	}
	return nil
}
