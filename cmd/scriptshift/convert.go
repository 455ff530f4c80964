package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scriptshift/scriptshift/runtime/parser"
	"github.com/scriptshift/scriptshift/runtime/transpile"
)

func newConvertCmd(a *app) *cobra.Command {
	var outDir string
	var watch bool

	cmd := &cobra.Command{
		Use:   "convert <script>...",
		Short: "Convert legacy scripts to C#",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := convertAll(a, args, outDir); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchAndReconvert(cmd.Context(), a, args, outDir)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory for generated .cs files")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-convert when a source file changes")
	return cmd
}

func convertAll(a *app, paths []string, outDir string) error {
	var firstErr error
	for _, path := range paths {
		if err := convertOne(a, path, outDir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func convertOne(a *app, path, outDir string) error {
	unit, perr := parser.ParseFile(path)
	if perr != nil {
		fmt.Printf("%s %s: %v\n", color.RedString("parse error"), path, perr)
		return fmt.Errorf("%s failed to parse", path)
	}

	res := transpile.Convert(unit)
	outPath := filepath.Join(outDir, unit.Name+".cs")
	if err := os.WriteFile(outPath, []byte(res.Code), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("%s %s -> %s  [%s]  complexity %d\n",
		color.GreenString("converted"), path, outPath, levelSummary(res), res.Complexity)
	for _, w := range res.Warnings {
		fmt.Printf("  %s %s\n", color.YellowString("warning"), w)
	}
	a.logger.Debug("unit converted",
		zap.String("unit", unit.Name),
		zap.String("hash", res.UnitHash),
		zap.Int("complexity", res.Complexity))
	return nil
}

// watchAndReconvert re-runs conversion for a source file whenever it is
// rewritten, until the context is canceled. Directories are watched rather
// than files so editors that replace-on-save keep triggering.
func watchAndReconvert(ctx context.Context, a *app, paths []string, outDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]string, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		watched[abs] = path
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
		}
	}
	fmt.Println(color.CyanString("watching for changes; interrupt to stop"))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			path, tracked := watched[abs]
			if !tracked {
				continue
			}
			if err := convertOne(a, path, outDir); err != nil {
				a.logger.Warn("re-conversion failed", zap.String("path", path), zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", zap.Error(err))
		}
	}
}
