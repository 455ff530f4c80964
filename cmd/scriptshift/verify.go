package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scriptshift/scriptshift/runtime/bridge"
	"github.com/scriptshift/scriptshift/runtime/compat"
)

func newVerifyCmd(a *app) *cobra.Command {
	var fixturesPath string
	var bridgeConfigPath string
	var harness string
	var harnessArgs []string
	var outPath string

	cmd := &cobra.Command{
		Use:   "verify <script>...",
		Short: "Run paired legacy/converted compatibility cases",
		Long: `verify converts each script, generates compatibility test cases from the
fixture file (or derived defaults), runs the legacy side through the bridge
and the converted side through the harness command, and reports verdicts.

The harness speaks the bridge wire protocol: it receives one JSON request
whose command field carries the generated C# and whose params carry the
fixture bindings, and answers with a value envelope on stdout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			legacyCfg := bridge.Config{Logger: a.logger}
			if bridgeConfigPath != "" {
				loaded, err := bridge.LoadConfig(bridgeConfigPath)
				if err != nil {
					return err
				}
				loaded.Logger = a.logger
				legacyCfg = loaded
			}
			legacyBridge := bridge.New(legacyCfg)
			defer legacyBridge.Close()

			harnessBridge := bridge.New(bridge.Config{
				Interpreter: harness,
				Args:        harnessArgs,
				Logger:      a.logger,
			})
			defer harnessBridge.Close()

			runner := compat.BridgeRunner{
				Bridge: legacyBridge,
				Converted: func(ctx context.Context, tc compat.TestCase) bridge.ExecutionResult {
					return harnessBridge.Invoke(ctx, bridge.Command{
						ID:     tc.Unit + "/" + tc.Fixture + "/converted",
						Text:   tc.ConvertedCode,
						Params: tc.Bindings,
					})
				},
			}

			var fixtures []compat.Fixture
			if fixturesPath != "" {
				loaded, err := compat.LoadFixtures(fixturesPath)
				if err != nil {
					return err
				}
				fixtures = loaded
			}

			units, results := loadCorpus(args)
			byName := make(map[string]int, len(results))
			for i, res := range results {
				byName[res.Unit] = i
			}

			var cases []compat.TestCase
			for _, unit := range units {
				generated, err := compat.Generate(unit, results[byName[unit.Name]], fixtures)
				if err != nil {
					return err
				}
				cases = append(cases, generated...)
			}

			verdicts := compat.Evaluate(cmd.Context(), runner, cases)

			failed := 0
			for _, v := range verdicts {
				if v.Pass {
					fmt.Printf("%s %s/%s\n", color.GreenString("PASS"), v.Unit, v.Fixture)
					continue
				}
				failed++
				fmt.Printf("%s %s/%s\n", color.RedString("FAIL"), v.Unit, v.Fixture)
				if v.Diagnostic != "" {
					fmt.Printf("  %s\n", v.Diagnostic)
				}
				if v.Diff != "" {
					fmt.Println(v.Diff)
				}
			}

			if outPath != "" {
				data, err := compat.MarshalVerdicts(verdicts)
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outPath, err)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d case(s) failed", failed, len(verdicts))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&fixturesPath, "fixtures", "f", "", "fixture YAML file (default: derived fixtures)")
	cmd.Flags().StringVarP(&bridgeConfigPath, "bridge-config", "c", "", "bridge TOML configuration file")
	cmd.Flags().StringVar(&harness, "harness", "scriptshift-harness", "command that executes generated C#")
	cmd.Flags().StringArrayVar(&harnessArgs, "harness-arg", nil, "argument passed to the harness command (repeatable)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write verdicts YAML to a file")
	return cmd
}
