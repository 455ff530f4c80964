package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <script>...",
		Short: "Report conversion levels without emitting code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, results := loadCorpus(args)
			failed := 0
			for _, res := range results {
				if res.Failure != nil {
					failed++
					fmt.Printf("%s %s: %v\n", color.RedString("parse error"), res.Unit, res.Failure)
					continue
				}
				fmt.Printf("%s  [%s]  complexity %d\n", res.Unit, levelSummary(res), res.Complexity)
				for _, w := range res.Warnings {
					fmt.Printf("  %s %s\n", color.YellowString("warning"), w)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d unit(s) failed to parse", failed)
			}
			return nil
		},
	}
}
