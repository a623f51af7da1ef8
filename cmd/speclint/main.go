// Package main provides the speclint binary entry point.
// Speclint validates a tree of Markdown specification documents against
// declarative YAML schemas.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/speclint/internal/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "speclint"
)

// Exit codes.
const (
	exitOK         = 0
	exitFindings   = 1
	exitSchemaLoad = 2
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := rootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitSchemaLoad
}

// globals are flags shared by every command.
type globals struct {
	cfg      config.Config
	verbose  bool
	logLevel string
	stdout   io.Writer
	stderr   io.Writer
}

func (g *globals) logger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(g.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(g.stderr, &slog.HandlerOptions{Level: level}))
}

func rootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{cfg: config.Load(), stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Validate Markdown specification documents against YAML schemas",
		Long: `Speclint checks a tree of Markdown documents against declarative module,
class and content-validator schemas: section structure, identifier
uniqueness, requirement and scenario grammar, and typed cross-references.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := g.cfg.Validate(); err != nil {
				return &exitError{code: exitSchemaLoad, err: fmt.Errorf("invalid configuration: %w", err)}
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Debug logging")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.cfg.SchemaDir, "schemas", g.cfg.SchemaDir, "Schema directory (default: bundled schemas)")

	cmd.AddCommand(validateCmd(g), watchCmd(g), serveCmd(g), schemasCmd(g))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})
	return cmd
}
