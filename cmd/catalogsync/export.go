package main

import (
	"fmt"
	"io"

	"github.com/FranksOps/catalogsync/internal/export"
	"github.com/FranksOps/catalogsync/internal/storage/registry"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var output, format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored catalog to stdout or a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := registry.Open(ctx, a.cfg.Store)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			products, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("list products: %w", err)
			}

			if output == "" {
				return export.Write(cmd.OutOrStdout(), format, products)
			}
			return writeOutput(output, func(w io.Writer) error {
				return export.Write(w, format, products)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "csv, json, yaml, text or html")
	return cmd
}
