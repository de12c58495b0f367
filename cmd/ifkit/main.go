// Command ifkit checks declarative IF worlds, compiles them to Inform7 and
// plays them in the terminal.
//
// Usage:
//
//	ifkit check DIR
//	ifkit emit DIR [-o FILE] [--watch]
//	ifkit play DIR [--plain] [--script FILE] [--trace] [--random N] [--seed S]
//	ifkit version
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nathoo/ifkit/config"
	"github.com/nathoo/ifkit/loader"
	"github.com/nathoo/ifkit/logging"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by subcommands.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	strict     bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ifkit",
		Short:         "Declarative interactive-fiction type compiler and rule runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default DIR/"+config.FileName+")")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: console or json")
	pf.BoolVar(&a.strict, "strict", false, "treat validation warnings as errors")

	root.AddCommand(
		newCheckCmd(a),
		newEmitCmd(a),
		newPlayCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration for the world in dir, applies flag overrides and
// builds the logger.
func (a *app) setup(cmd *cobra.Command, dir string) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		if _, statErr := os.Stat(a.configPath); statErr != nil {
			return fmt.Errorf("config: %w", statErr)
		}
		cfg, err = config.Load(a.configPath)
	} else {
		cfg, err = config.LoadDir(dir)
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if flags.Changed("strict") {
		cfg.Load.Strict = a.strict
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger.With(zap.String("world", filepath.Base(dir)))
	return nil
}

func (a *app) load(dir string) (*loader.Project, error) {
	return loader.Load(dir, loader.Options{
		Logger:      a.logger,
		Parallelism: a.cfg.Load.Parallelism,
		Strict:      a.cfg.Load.Strict,
	})
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check DIR",
		Short: "Load a world and report every declaration error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, args[0]); err != nil {
				return err
			}
			p, err := a.load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range p.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			fmt.Fprintf(out, "ok: %d type(s), %d instance(s), %d fact(s) in %d file(s)\n",
				len(p.Decls), len(p.Scenario.Instances), len(p.Scenario.Facts), len(p.Files))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ifkit %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
