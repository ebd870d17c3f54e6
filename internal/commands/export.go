package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/finboard/txexchange/internal/exporter"
	"github.com/finboard/txexchange/internal/runlog"
)

func newExportCommand(g *globals) *cobra.Command {
	var outPath string
	var token string
	var userID string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the authenticated user's transactions to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.load(); err != nil {
				return err
			}
			tok, err := resolveToken(token)
			if err != nil {
				return err
			}
			if userID != "" {
				g.log.WithField("user", userID).Debug("--user is ignored; the token identifies the user")
			}
			if outPath == "" {
				outPath = defaultExportPath(g, time.Now())
			}
			return runExport(cmd, g, tok, outPath)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output CSV path (default <output_dir>/transactions-<timestamp>.csv)")
	cmd.Flags().StringVar(&token, "token", "", "API bearer token (default $TXEXCHANGE_TOKEN)")
	cmd.Flags().StringVar(&userID, "user", "", "user ID (accepted for compatibility, unused)")

	return cmd
}

func runExport(cmd *cobra.Command, g *globals, token, outPath string) error {
	exp := exporter.New(g.client(),
		exporter.WithPageSize(g.cfg.Export.PageSize),
		exporter.WithLogger(g.log),
	)

	res := exp.ExportToCSV(cmd.Context(), token, outPath)
	g.recordRun(runlog.FromExport(time.Now(), outPath, res))

	out := cmd.OutOrStdout()
	switch {
	case res.Success:
		fmt.Fprintf(out, "Exported %d transactions to %s\n", res.TransactionCount, res.FilePath)
		return nil
	case res.Error != "":
		return errors.New("export failed: " + res.Error)
	default:
		fmt.Fprintln(out, res.Message)
		return nil
	}
}

func defaultExportPath(g *globals, now time.Time) string {
	dir := g.cfg.Export.OutputDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(g.projectRoot(), dir)
	}
	return filepath.Join(dir, "transactions-"+now.Format("20060102-150405")+".csv")
}
