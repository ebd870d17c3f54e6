package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/finboard/txexchange/internal/importer"
	"github.com/finboard/txexchange/internal/model"
	"github.com/finboard/txexchange/internal/runlog"
)

func newImportCommand(g *globals) *cobra.Command {
	var token string
	var dir string
	var workers int

	cmd := &cobra.Command{
		Use:   "import [csv-file]",
		Short: "Validate a credit-score CSV and submit each row",
		Long: "Validate a credit-score CSV (columns user_id, score) and submit each valid row.\n" +
			"With --dir, every CSV in <dir>/import/ is imported and moved to import/processed/.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (dir == "") {
				return errors.New("pass exactly one of a CSV file or --dir")
			}
			if err := g.load(); err != nil {
				return err
			}
			tok, err := resolveToken(token)
			if err != nil {
				return err
			}
			if workers > 0 {
				g.cfg.Import.Workers = workers
			}

			im := importer.New(g.client(),
				importer.WithWorkers(g.cfg.Import.Workers),
				importer.WithLogger(g.log),
			)
			if dir != "" {
				absDir, err := filepath.Abs(dir)
				if err != nil {
					return fmt.Errorf("resolving path: %w", err)
				}
				return runImportDir(cmd, g, im, absDir, tok)
			}
			return runImport(cmd, g, im, args[0], tok)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API bearer token (default $TXEXCHANGE_TOKEN)")
	cmd.Flags().StringVar(&dir, "dir", "", "project directory whose import/ folder should be processed")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent submissions (default from config)")

	return cmd
}

func runImport(cmd *cobra.Command, g *globals, im *importer.Importer, path, token string) error {
	res, err := im.ImportFromCSV(cmd.Context(), path, token)
	g.recordRun(runlog.FromImport(time.Now(), path, res, err))
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	printImportResult(cmd.OutOrStdout(), res)
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return nil
}

func runImportDir(cmd *cobra.Command, g *globals, im *importer.Importer, root, token string) error {
	reports, err := im.ImportDir(cmd.Context(), root, token)

	out := cmd.OutOrStdout()
	var entries []runlog.Entry
	failed := 0
	for _, r := range reports {
		entries = append(entries, runlog.FromImport(time.Now(), r.File.Path, r.Result, r.Err))

		fmt.Fprintf(out, "== %s\n", r.File.Name)
		if r.Result != nil {
			printImportResult(out, r.Result)
		}
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "error: %v\n", r.Err)
		}
	}
	g.recordRun(entries...)

	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if len(reports) == 0 {
		fmt.Fprintln(out, "No CSV files to import")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be imported", failed, len(reports))
	}
	return nil
}

func printImportResult(w io.Writer, res *model.ImportResult) {
	if res.Error != "" {
		fmt.Fprintln(w, res.Error)
		return
	}
	fmt.Fprintf(w, "Processed: %d\n", res.Processed)
	fmt.Fprintf(w, "Succeeded: %d\n", res.Succeeded)
	fmt.Fprintf(w, "Failed:    %d\n", res.Failed)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
