package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/speclint/internal/discover"
)

func watchCmd(g *globals) *cobra.Command {
	f := &validateFlags{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Re-validate whenever documents or schemas change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				g.cfg.Root = args[0]
			}
			log := g.logger()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w, err := discover.NewWatcher(debounce, log, ".yaml", ".yml", g.cfg.IgnoreFile, g.cfg.UnmanagedFile)
			if err != nil {
				return &exitError{code: exitSchemaLoad, err: fmt.Errorf("start watcher: %w", err)}
			}
			defer w.Close()
			if err := w.Add(g.cfg.Root); err != nil {
				return &exitError{code: exitSchemaLoad, err: fmt.Errorf("watch %s: %w", g.cfg.Root, err)}
			}
			if g.cfg.SchemaDir != "" {
				if err := w.Add(g.cfg.SchemaDir); err != nil {
					return &exitError{code: exitSchemaLoad, err: fmt.Errorf("watch %s: %w", g.cfg.SchemaDir, err)}
				}
			}
			go w.Run(ctx)

			once := func() {
				fmt.Fprintf(cmd.OutOrStdout(), "--- %s\n", time.Now().Format(time.TimeOnly))
				// Schemas are reloaded every time so edits to them take effect.
				reg, err := loadSchemas(g.cfg.SchemaDir)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
					return
				}
				if _, err := runValidation(ctx, g, reg, f.format, cmd.OutOrStdout(), log); err != nil && ctx.Err() == nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				}
			}

			once()
			log.Info("watching for changes", "root", g.cfg.Root, "debounce", debounce)
			for paths := range w.Changes() {
				log.Debug("changes", "files", len(paths))
				once()
			}
			return nil
		},
	}
	addValidateFlags(cmd, g, f)
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "Quiet period before re-validating")
	return cmd
}
