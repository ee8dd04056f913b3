package forwardbackward

import (
	"math"

	"github.com/LdDl/viterbi/hmm"
)

func logOf(c float64) float64 {
	return math.Log(c)
}

func transitionKey[S comparable](from, to S) hmm.TransitionKey[S] {
	return hmm.TransitionKey[S]{From: from, To: to}
}
