package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/FranksOps/catalogsync/internal/export"
	"github.com/FranksOps/catalogsync/internal/storage/registry"
	"github.com/spf13/cobra"
)

func newScrapeCmd(a *app) *cobra.Command {
	var output, format string

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape cycle",
		Long: "Run one scrape cycle and replace the stored catalog. With --output the\n" +
			"scraped records are written to a file instead and the store is left alone.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "" {
				return scrapeToFile(cmd.Context(), a, output, format)
			}
			return scrapeToStore(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write records to this file (- for stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format for --output")
	return cmd
}

func scrapeToStore(ctx context.Context, a *app, out io.Writer) error {
	store, err := registry.Open(ctx, a.cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	syncer, err := newSyncer(a.cfg, store, nil, a.logger)
	if err != nil {
		return err
	}

	rep, err := syncer.RunCycle(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d pages, %d fetched, %d saved\n", rep.Outcome, rep.Pages, rep.Fetched, rep.Saved)
	return nil
}

func scrapeToFile(ctx context.Context, a *app, output, format string) error {
	syncer, err := newSyncer(a.cfg, nil, nil, a.logger)
	if err != nil {
		return err
	}

	tr := syncer.Collect(ctx)
	if len(tr.Records) == 0 && tr.Err != nil {
		return fmt.Errorf("scrape: %w", tr.Err)
	}

	return writeOutput(output, func(w io.Writer) error {
		return export.Write(w, format, export.Records(tr.Records))
	})
}

// writeOutput writes to stdout for "-" and otherwise to a file replaced only
// once rendering succeeds.
func writeOutput(path string, render func(io.Writer) error) error {
	if path == "-" {
		return render(os.Stdout)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".catalogsync-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := render(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
