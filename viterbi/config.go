package viterbi

// Config is a builder-style options record for Engine. The zero value is
// the default configuration (both features off).
type Config struct {
	keepMessageHistory            bool
	computeSmoothingProbabilities bool
}

// NewConfig returns the default configuration.
func NewConfig() Config {
	return Config{}
}

// WithMessageHistory enables storing a per-step message snapshot,
// retrievable via Engine.MessageHistory. Off by default.
func (c Config) WithMessageHistory() Config {
	c.keepMessageHistory = true
	return c
}

// WithSmoothingProbabilities enables an internally-owned
// forward-backward pass fed the same per-step tables (converted from
// log to linear), attaching a smoothing posterior to each state in the
// sequence returned by ComputeMostLikelySequence. Roughly doubles memory
// and time. Off by default.
func (c Config) WithSmoothingProbabilities() Config {
	c.computeSmoothingProbabilities = true
	return c
}
