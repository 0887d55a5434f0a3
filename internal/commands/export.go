package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/auditfile-dev/auditfile"
	"github.com/auditfile-dev/auditfile/internal/config"
	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/intrastat"
	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/ledger/csvload"
	"github.com/auditfile-dev/auditfile/internal/ledger/postgres"
	"github.com/auditfile-dev/auditfile/internal/options"
)

const dateFlagLayout = "2006-01-02"

// exportFlags are shared by every export subcommand.
type exportFlags struct {
	configPath string
	from       string
	to         string
	out        string
	verbose    bool
}

func newExportCommand() *cobra.Command {
	flags := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render regulatory export files",
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "auditfile.yaml", "configuration file")
	cmd.PersistentFlags().StringVar(&flags.from, "from", "", "period start, YYYY-MM-DD (required)")
	cmd.PersistentFlags().StringVar(&flags.to, "to", "", "period end, YYYY-MM-DD (required)")
	cmd.PersistentFlags().StringVar(&flags.out, "out", "exports", "output directory")
	cmd.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "debug logging")
	_ = cmd.MarkPersistentFlagRequired("from")
	_ = cmd.MarkPersistentFlagRequired("to")

	cmd.AddCommand(newExportSAFTCommand(flags))
	cmd.AddCommand(newExportIntrastatCommand(flags))
	cmd.AddCommand(newExportTrialBalanceCommand(flags))
	cmd.AddCommand(newExportECSalesCommand(flags))

	return cmd
}

func newExportSAFTCommand(flags *exportFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "saft <dialect>",
		Short: "SAF-T export (at, lu, no, lt, ro_monthly)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), flags, func(ctx context.Context, e *auditfile.Exporter, raw options.Raw) (export.Result, error) {
				return e.ExportSAFT(ctx, raw, args[0])
			})
		},
	}
}

func newExportIntrastatCommand(flags *exportFlags) *cobra.Command {
	var flow string
	var variant string

	cmd := &cobra.Command{
		Use:   "intrastat <dialect>",
		Short: "Intrastat export (de, dk, fr)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), flags, func(ctx context.Context, e *auditfile.Exporter, raw options.Raw) (export.Result, error) {
				raw.Variant = variant
				return e.ExportIntrastat(ctx, raw, args[0], intrastat.ParseFlow(flow))
			})
		},
	}
	cmd.Flags().StringVar(&flow, "flow", "both", "arrivals, dispatches or both")
	cmd.Flags().StringVar(&variant, "variant", "", "report variant (fr: statistical_survey or vat_summary_statement)")
	return cmd
}

func newExportTrialBalanceCommand(flags *exportFlags) *cobra.Command {
	var variant string

	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Romanian trial balance export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), flags, func(ctx context.Context, e *auditfile.Exporter, raw options.Raw) (export.Result, error) {
				return e.ExportTrialBalance(ctx, raw, variant)
			})
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "ro_5col", "ro_4col or ro_5col")
	return cmd
}

func newExportECSalesCommand(flags *exportFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ec-sales",
		Short: "Danish EC sales list export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), flags, func(ctx context.Context, e *auditfile.Exporter, raw options.Raw) (export.Result, error) {
				return e.ExportECSales(ctx, raw)
			})
		},
	}
}

func runExport(ctx context.Context, flags *exportFlags, run func(context.Context, *auditfile.Exporter, options.Raw) (export.Result, error)) error {
	_ = godotenv.Load()

	level := zerolog.InfoLevel
	if flags.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	from, err := time.Parse(dateFlagLayout, flags.from)
	if err != nil {
		return fmt.Errorf("parsing --from: %w", err)
	}
	to, err := time.Parse(dateFlagLayout, flags.to)
	if err != nil {
		return fmt.Errorf("parsing --to: %w", err)
	}
	if to.Before(from) {
		return fmt.Errorf("--to %s precedes --from %s", flags.to, flags.from)
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	exporter := auditfile.New(store, cfg.ModelCompany(), log)
	result, err := run(ctx, exporter, options.Raw{DateFrom: from, DateTo: to})
	if err != nil {
		var failed *export.ExportFailed
		if errors.As(err, &failed) {
			for _, code := range failed.Errors.Codes() {
				e := failed.Errors[code]
				log.Error().Str("code", code).Str("severity", string(e.Severity)).Msg(e.Message)
			}
		}
		return err
	}

	for _, w := range result.Warnings {
		log.Warn().Str("code", w.Code).Msg(w.Message)
	}

	if err := os.MkdirAll(flags.out, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(flags.out, result.FileName)
	if err := os.WriteFile(path, result.Content, 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", path, len(result.Content))
	return nil
}

// openStore builds the ledger store the configuration selects: a CSV
// snapshot directory, or a read-only Postgres snapshot.
func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, func(), error) {
	if cfg.Data.DSNEnv != "" {
		dsn := os.Getenv(cfg.Data.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("environment variable %s is empty", cfg.Data.DSNEnv)
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		snap, err := postgres.New(pool, cfg.Data.CompanyID, cfg.Company.FiscalYearStart).Snapshot(ctx)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("opening snapshot: %w", err)
		}
		cleanup := func() {
			_ = snap.Close(context.Background())
			pool.Close()
		}
		return snap, cleanup, nil
	}

	dir := cfg.Data.CSVDir
	if dir == "" {
		dir = "data"
	}
	rates := make(map[string]decimal.Decimal, len(cfg.Rates))
	for code, raw := range cfg.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing rate for %s: %w", code, err)
		}
		rates[code] = rate
	}
	store, err := csvload.Load(dir, cfg.Company.FiscalYearStart, rates)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}
