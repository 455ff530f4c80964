// Command scriptshift migrates legacy automation scripts to C#: convert
// emits code, classify reports conversion levels, plan orders units into
// migration phases, and verify runs paired compatibility cases.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scriptshift/scriptshift/core/script"
	"github.com/scriptshift/scriptshift/runtime/parser"
	"github.com/scriptshift/scriptshift/runtime/transpile"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

type app struct {
	verbose bool
	noColor bool
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "scriptshift",
		Short:         "Legacy script bridge and transpiler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = color.NoColor || a.noColor
			logger, err := a.buildLogger()
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newConvertCmd(a))
	root.AddCommand(newClassifyCmd(a))
	root.AddCommand(newPlanCmd(a))
	root.AddCommand(newVerifyCmd(a))
	return root
}

func (a *app) buildLogger() (*zap.Logger, error) {
	if a.verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// loadCorpus parses and converts every named script file. A unit that fails
// to parse yields a failure-tagged result and does not abort the rest.
func loadCorpus(paths []string) ([]*script.Unit, []transpile.Result) {
	units := make([]*script.Unit, 0, len(paths))
	results := make([]transpile.Result, 0, len(paths))
	for _, path := range paths {
		unit, perr := parser.ParseFile(path)
		if perr != nil {
			results = append(results, transpile.Result{Unit: perr.Unit, Failure: perr})
			continue
		}
		units = append(units, unit)
		results = append(results, transpile.Convert(unit))
	}
	return units, results
}

func levelSummary(res transpile.Result) string {
	counts := map[transpile.Level]int{}
	for _, nl := range res.Levels {
		counts[nl.Level]++
	}
	return fmt.Sprintf("%s %d  %s %d  %s %d",
		color.GreenString("FULL"), counts[transpile.LevelFull],
		color.YellowString("HYBRID"), counts[transpile.LevelHybrid],
		color.RedString("BRIDGE"), counts[transpile.LevelBridge])
}
