package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/speclint/internal/discover"
	"github.com/dgallion1/speclint/internal/linkcheck"
	"github.com/dgallion1/speclint/internal/pipeline"
	"github.com/dgallion1/speclint/internal/report"
	"github.com/dgallion1/speclint/internal/schema"
)

// validateFlags are the validate and watch command flags.
type validateFlags struct {
	format string
}

func addValidateFlags(cmd *cobra.Command, g *globals, f *validateFlags) {
	fl := cmd.Flags()
	fl.StringVar(&g.cfg.IgnoreFile, "ignore-file", g.cfg.IgnoreFile, "Ignore file under the root listing excluded paths")
	fl.StringVar(&g.cfg.UnmanagedFile, "unmanaged-file", g.cfg.UnmanagedFile, "File under the root listing unmanaged paths")
	fl.StringVar(&f.format, "format", "text", "Output format (text, json)")
	fl.IntVar(&g.cfg.MaxErrors, "max-errors", g.cfg.MaxErrors, "Stop after this many errors (0 = unlimited)")
	fl.IntVar(&g.cfg.Workers, "workers", g.cfg.Workers, "Parallel document workers")
	fl.StringVar(&g.cfg.UnmatchedPolicy, "unmatched", g.cfg.UnmatchedPolicy, "Files matching no module type: unmanaged or warn")
	fl.BoolVar(&g.cfg.WarningsAsErrors, "warnings-as-errors", g.cfg.WarningsAsErrors, "Exit non-zero on warnings")
	fl.BoolVar(&g.cfg.CheckLinks, "check-links", g.cfg.CheckLinks, "Probe external links over HTTP")
}

func validateCmd(g *globals) *cobra.Command {
	f := &validateFlags{}
	cmd := &cobra.Command{
		Use:   "validate [root]",
		Short: "Validate the documents under root",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				g.cfg.Root = args[0]
			}
			if f.format != "text" && f.format != "json" {
				return &exitError{code: exitSchemaLoad, err: fmt.Errorf("unknown format %q (want text or json)", f.format)}
			}
			log := g.logger()
			reg, err := loadSchemas(g.cfg.SchemaDir)
			if err != nil {
				return &exitError{code: exitSchemaLoad, err: err}
			}
			failed, err := runValidation(cmd.Context(), g, reg, f.format, cmd.OutOrStdout(), log)
			if err != nil {
				return &exitError{code: exitSchemaLoad, err: err}
			}
			if failed {
				return &exitError{code: exitFindings}
			}
			return nil
		},
	}
	addValidateFlags(cmd, g, f)
	return cmd
}

func loadSchemas(dir string) (*schema.Registry, error) {
	if dir == "" {
		return schema.Defaults()
	}
	reg, err := schema.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	return reg, nil
}

// runValidation validates the configured root once and renders the report.
func runValidation(ctx context.Context, g *globals, reg *schema.Registry, format string, out io.Writer, log *slog.Logger) (bool, error) {
	root := g.cfg.Root
	if info, err := os.Stat(root); err != nil {
		return false, fmt.Errorf("stat root: %w", err)
	} else if !info.IsDir() {
		return false, fmt.Errorf("not a directory: %s", root)
	}

	excluded, err := discover.LoadPatterns(filepath.Join(root, g.cfg.IgnoreFile))
	if err != nil {
		return false, err
	}
	unmanaged, err := discover.LoadPatterns(filepath.Join(root, g.cfg.UnmanagedFile))
	if err != nil {
		return false, err
	}
	paths, err := discover.Walk(root)
	if err != nil {
		return false, fmt.Errorf("walk %s: %w", root, err)
	}
	log.Debug("discovered documents", "root", root, "documents", len(paths),
		"excluded_rules", excluded.Len(), "unmanaged_rules", unmanaged.Len())

	opts := pipeline.Options{
		Workers:    g.cfg.Workers,
		MaxErrors:  g.cfg.MaxErrors,
		Policy:     g.cfg.Policy(),
		Excluded:   excluded.Predicate(),
		Unmanaged:  unmanaged.Predicate(),
		FileExists: discover.FileExists(root),
	}
	if g.cfg.CheckLinks {
		checker := linkcheck.New(g.cfg.LinkTimeout, g.cfg.LinkWorkers, log)
		defer checker.Close()
		opts.Links = checker
	}

	v, err := pipeline.NewValidator(reg, opts, log)
	if err != nil {
		return false, err
	}
	res, err := v.Run(ctx, paths, discover.Reader(root))
	if err != nil {
		return false, err
	}

	if format == "json" {
		err = report.WriteJSON(out, res.Report)
	} else {
		err = report.WriteText(out, res.Report)
	}
	if err != nil {
		return false, fmt.Errorf("write report: %w", err)
	}
	return res.Report.Failed(g.cfg.WarningsAsErrors), nil
}
