// Command mapmatch-demo exercises the viterbi and forwardbackward
// engines end to end: the Wikipedia rain/sun smoothing example, and a toy GPS-to-road-candidate Viterbi run built on the
// examples/mapmatching helpers. It is a demonstration harness for the
// library, not a production map-matcher.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LdDl/viterbi/cmd/mapmatch-demo/scenarios"
)

// startupParams mirrors how a small CLI in this ecosystem threads its
// flags and logger through to the subcommands it runs.
type startupParams struct {
	verbose bool
	logger  *zap.Logger
}

func main() {
	sp := &startupParams{}
	root := &cobra.Command{
		Use:   "mapmatch-demo",
		Short: "Run the viterbi and forwardbackward engines against built-in scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(sp)
		},
	}
	root.PersistentFlags().BoolVarP(&sp.verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(sp *startupParams) error {
	cfg := zap.NewDevelopmentConfig()
	if !sp.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return errors.Wrap(err, "could not build logger")
	}
	defer logger.Sync() //nolint:errcheck
	sp.logger = logger

	if err := scenarios.RunUmbrella(logger); err != nil {
		return errors.Wrap(err, "umbrella scenario failed")
	}
	if err := scenarios.RunGPSMapMatch(logger); err != nil {
		return errors.Wrap(err, "gps map-match scenario failed")
	}
	return nil
}
