package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scriptshift/scriptshift/runtime/planner"
)

func newPlanCmd(a *app) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "plan <script>...",
		Short: "Order script units into migration phases",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			units, results := loadCorpus(args)
			plan, err := planner.Build(units, results)
			if err != nil {
				return err
			}

			data, err := plan.Marshal()
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outPath, err)
				}
			} else {
				fmt.Print(string(data))
			}

			for i, phase := range plan.Phases {
				fmt.Fprintf(os.Stderr, "%s %d: ", color.CyanString("phase"), i+1)
				for j, u := range phase.Units {
					if j > 0 {
						fmt.Fprint(os.Stderr, ", ")
					}
					name := u.Name
					if u.BridgeOnly {
						name = color.RedString("%s(bridge-only)", u.Name)
					}
					fmt.Fprint(os.Stderr, name)
				}
				fmt.Fprintln(os.Stderr)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the plan YAML to a file instead of stdout")
	return cmd
}
