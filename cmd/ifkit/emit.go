package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nathoo/ifkit/emit"
)

// watchDebounce batches the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

func newEmitCmd(a *app) *cobra.Command {
	var (
		output string
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "emit DIR",
		Short: "Compile a world to Inform7 source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if err := a.setup(cmd, dir); err != nil {
				return err
			}
			if !cmd.Flags().Changed("output") {
				output = a.cfg.Emit.Output
			}
			if !watch {
				return a.emitOnce(cmd, dir, output)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.watch(ctx, cmd, dir, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write Inform7 source to FILE instead of stdout")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-emit whenever a source file changes")
	return cmd
}

func (a *app) emitOnce(cmd *cobra.Command, dir, output string) error {
	p, err := a.load(dir)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	srcs, err := emit.EmitAll(ctx, p.Model, emit.Options{Parallelism: a.cfg.Load.Parallelism})
	if err != nil {
		return err
	}
	text := emit.Render(srcs)
	if output == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	if err := os.WriteFile(output, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	a.logger.Info("emitted", zap.String("output", output), zap.Int("types", len(srcs)))
	return nil
}

// watch emits once, then again after every change to a .twl or .lua file in
// dir, until ctx is done. Load errors are reported and watching continues.
func (a *app) watch(ctx context.Context, cmd *cobra.Command, dir, output string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	report := func() {
		if err := a.emitOnce(cmd, dir, output); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
	}
	report()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isSourceEvent(ev) {
				continue
			}
			a.logger.Debug("source changed", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			report()
		}
	}
}

func isSourceEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	switch filepath.Ext(ev.Name) {
	case ".twl", ".lua":
		return true
	}
	return false
}
