package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listing-dedupe/internal/dedupe"
	"github.com/sells-group/listing-dedupe/internal/model"
	"github.com/sells-group/listing-dedupe/internal/report"
	"github.com/sells-group/listing-dedupe/internal/source"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a portfolio for duplicate listings",
	Long:  "Loads listings from a JSON, CSV or XLSX file (or the configured Postgres source), runs the duplicate scan, stores the run and prints a report.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("scan"); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		sheet, _ := cmd.Flags().GetString("sheet")
		fromDB, _ := cmd.Flags().GetBool("from-db")
		owner, _ := cmd.Flags().GetString("owner")
		overridePath, _ := cmd.Flags().GetString("override")
		formatName, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("output")
		noSave, _ := cmd.Flags().GetBool("no-save")

		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}
		override, err := loadOverride(overridePath)
		if err != nil {
			return err
		}

		records, err := loadRecords(ctx, input, sheet, fromDB, owner)
		if err != nil {
			return err
		}
		zap.L().Info("loaded listings", zap.Int("count", len(records)))

		env, err := initEngine()
		if err != nil {
			return err
		}

		result, runErr := env.Engine.Run(ctx, records, dedupe.RunOptions{OwnerID: owner, Override: override})
		env.LogUsage()
		if result == nil {
			return runErr
		}

		if !noSave {
			// Persist partial results of a cancelled run too.
			saveCtx := context.WithoutCancel(ctx)
			st, err := initStore(saveCtx)
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close() //nolint:errcheck
				if err := st.SaveRun(saveCtx, result.Summary(), result.MatchRecords()); err != nil {
					return eris.Wrap(err, "scan: save run")
				}
			}
		}

		out, closeOut, err := openOutput(outPath)
		if err != nil {
			return err
		}
		defer closeOut()

		if err := report.Write(out, format, report.Report{Run: result.Summary(), Matches: result.MatchRecords()}); err != nil {
			return err
		}
		return runErr
	},
}

// loadRecords reads listings from the input file or, with fromDB, from the
// configured Postgres source table.
func loadRecords(ctx context.Context, input, sheet string, fromDB bool, owner string) ([]model.PropertyRecord, error) {
	switch {
	case fromDB:
		if cfg.Source.DatabaseURL == "" {
			return nil, eris.New("source.database_url is required with --from-db (LISTINGS_SOURCE_DATABASE_URL)")
		}
		pool, err := pgxpool.New(ctx, cfg.Source.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "scan: connect source database")
		}
		defer pool.Close()
		return source.NewPostgresSource(pool, cfg.Source.Table, owner).Load(ctx)
	case input != "":
		return source.FileSource{Path: input, Sheet: sheet}.Load(ctx)
	default:
		return nil, eris.New("one of --input or --from-db is required")
	}
}

// openOutput returns stdout for an empty path.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "create output file")
	}
	return f, func() { _ = f.Close() }, nil
}

func init() {
	scanCmd.Flags().StringP("input", "i", "", "listings file (.json, .csv, .tsv, .xlsx)")
	scanCmd.Flags().String("sheet", "", "XLSX worksheet name (default first sheet)")
	scanCmd.Flags().Bool("from-db", false, "read listings from the configured Postgres source table")
	scanCmd.Flags().String("owner", "", "only consider listings of this owner")
	scanCmd.Flags().String("override", "", "YAML file with dedupe settings for this run only")
	scanCmd.Flags().StringP("format", "f", "table", "report format: table, json or xlsx")
	scanCmd.Flags().StringP("output", "o", "", "report file (default stdout)")
	scanCmd.Flags().Bool("no-save", false, "do not persist the run")
	rootCmd.AddCommand(scanCmd)
}
