package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/steveyegge/focusboard/internal/migrate"
	"github.com/steveyegge/focusboard/internal/ui"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "board",
	Short:   "Export all tasks as JSONL",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		defer a.close()

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				fatal("Error: %v\n", err)
			}
			defer f.Close()
			out = f
		}

		n, err := migrate.Export(ctx, a.gw, migrate.ExportOptions{
			OwnerID: a.cfg.OwnerID,
			Out:     out,
		})
		if err != nil {
			fatal("Error exporting: %v\n", err)
		}
		if exportOut != "" {
			fmt.Printf("%s Exported %d task(s) to %s\n", ui.RenderPass("✓"), n, exportOut)
		}
	},
}

var importDryRun bool

var importCmd = &cobra.Command{
	Use:     "import <file.jsonl>",
	GroupID: "board",
	Short:   "Import tasks from JSONL",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		defer a.close()

		result, err := migrate.Import(ctx, a.gw, migrate.ImportOptions{
			Path:   args[0],
			DryRun: importDryRun,
		})
		if err != nil {
			fatal("Error importing: %v\n", err)
		}

		verb := "Imported"
		if importDryRun {
			verb = "Would import"
		}
		fmt.Printf("%s %s %d task(s)\n", ui.RenderPass("✓"), verb, result.TasksImported)
		for _, msg := range result.Errors {
			fmt.Printf("   %s %s\n", ui.RenderWarn("⚠"), msg)
		}

		// Re-seed the snapshot so ordering gaps introduced by the
		// import heal immediately.
		if !importDryRun {
			if err := a.store.Load(ctx, a.cfg.OwnerID); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: reload failed: %v\n", err)
			}
		}
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate without writing")
}
