// billctl generates F&O bills from the command line using the same
// pipeline as the API server.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ksred/klear-bill/internal/billing"
	"github.com/ksred/klear-bill/internal/charges"
	"github.com/ksred/klear-bill/internal/config"
	"github.com/ksred/klear-bill/internal/database"
	"github.com/ksred/klear-bill/internal/ledger"
	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/internal/settlement"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "billctl",
	Short:         "Generate F&O brokerage bills from broker extracts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read .env: %w", err)
		}

		configFile, _ := cmd.Flags().GetString("config")
		if configFile == "" {
			configFile = os.Getenv("KLEARBILL_CONFIG")
		}
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if card, _ := cmd.Flags().GetString("rate-card"); card != "" {
			cfg.RateCard.Path = card
		}
		cfg.Logging.Apply(os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("rate-card", "", "rate card workbook, overrides rate_card.path")
	rootCmd.PersistentFlags().Bool("no-ledger", false, "do not record runs in the ledger")

	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(rateCardCmd)
	rootCmd.AddCommand(runsCmd)
}

// --- Compute Command ---

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Bill one account and write its PDF",
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := newService(cmd)
		if err != nil {
			return err
		}

		account, _ := cmd.Flags().GetString("account")
		tradeDate, _ := cmd.Flags().GetString("trade-date")
		closes, err := closesFromFlags(cmd)
		if err != nil {
			return err
		}
		rawOverrides, _ := cmd.Flags().GetString("overrides")
		overrides, err := charges.ParseOverrides(rawOverrides)
		if err != nil {
			return err
		}
		rawAdditions, _ := cmd.Flags().GetString("additions")
		additions, err := charges.ParseAdditions(rawAdditions)
		if err != nil {
			return err
		}

		daywise, netwise, closeFiles, err := openExtracts(cmd)
		if err != nil {
			return err
		}
		defer closeFiles()

		g, err := service.Generate(cmd.Context(), billing.GenerateRequest{
			Account:   account,
			TradeDate: tradeDate,
			Daywise:   daywise,
			Netwise:   netwise,
			Closes:    closes,
			Overrides: overrides,
			Additions: additions,
		})
		if err != nil {
			return err
		}

		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			return printJSON(cmd, service.Debug(g))
		}

		pdf, err := service.RenderPDF(g)
		if err != nil {
			return err
		}
		out, err := outputPath(cmd, g.Bill.Filename())
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, pdf, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}

		c := g.Bill.Charges
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n  net amount:     %.2f\n  total expenses: %.2f\n  bill amount:    %.2f\n",
			out, c.NetAmount, c.TotalExpenses, c.TotalBillAmount)
		return nil
	},
}

func init() {
	computeCmd.Flags().String("account", "", "account shown on the bill")
	computeCmd.Flags().String("overrides", "", `JSON array of {"code","amount"} overrides`)
	computeCmd.Flags().String("additions", "", `JSON array of {"name","amount","gst_applicable"} custom charges`)
	computeCmd.Flags().Bool("debug", false, "print the debug view as JSON instead of writing a PDF")
	_ = computeCmd.MarkFlagRequired("account")
	addExtractFlags(computeCmd)
}

// --- Batch Command ---

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Bill every account in an admin extract and write the ZIP",
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := newService(cmd)
		if err != nil {
			return err
		}

		tradeDate, _ := cmd.Flags().GetString("trade-date")
		closes, err := closesFromFlags(cmd)
		if err != nil {
			return err
		}
		daywise, netwise, closeFiles, err := openExtracts(cmd)
		if err != nil {
			return err
		}
		defer closeFiles()

		res, err := service.RunBatch(cmd.Context(), billing.BatchRequest{
			TradeDate: tradeDate,
			Daywise:   daywise,
			Netwise:   netwise,
			Closes:    closes,
		})
		if err != nil {
			return err
		}

		out, err := outputPath(cmd, res.Filename())
		if err != nil {
			return err
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		if err := res.WriteZip(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", out, err)
		}

		m := res.Manifest
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n  batch:    %s\n  billed:   %d\n  failed:   %d\n",
			out, m.BatchID, len(m.Success), len(m.Failures))
		for _, failure := range m.Failures {
			fmt.Fprintf(cmd.OutOrStdout(), "    %s: %s\n", failure.Key, failure.Error)
		}
		return nil
	},
}

func init() {
	addExtractFlags(batchCmd)
}

// --- Rate Card Command ---

var rateCardCmd = &cobra.Command{
	Use:   "rate-card",
	Short: "Print the parsed rate card",
	RunE: func(cmd *cobra.Command, args []string) error {
		card, err := ratecard.NewCache(ratecard.FileLoader(cfg.RateCardOptions())).Get()
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, card)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "source: %s\n\n", card.Source)
		fmt.Fprintln(w, "KEY\tBASE\tGST\tFUTURES %\tOPTIONS %\tASSIGNMENT %")
		for _, r := range card.Rules {
			fmt.Fprintf(w, "%s\t%s\t%t\t%g\t%g\t%g\n", r.Key, r.BaseSide, r.GST, r.Rates.Futures, r.Rates.Options, r.Rates.Assignment)
		}
		if missing := card.MissingKeys(); len(missing) > 0 {
			fmt.Fprintf(w, "\nmissing: %s\n", strings.Join(missing, ", "))
		}
		return w.Flush()
	},
}

func init() {
	rateCardCmd.Flags().Bool("json", false, "print as JSON")
}

// --- Runs Command ---

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent bill runs from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := openLedger(cmd)
		if err != nil {
			return err
		}
		if !runs.Enabled() {
			return errors.New("ledger is disabled")
		}

		account, _ := cmd.Flags().GetString("account")
		limit, _ := cmd.Flags().GetInt("limit")
		list, err := runs.Recent(account, limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tRUN\tACCOUNT\tTRADE DATE\tMODE\tSTATUS\tBILL AMOUNT\tERROR")
		for _, r := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
				r.CreatedAt.Format("2006-01-02 15:04:05"), r.RunID, r.Account, r.TradeDate, r.Mode, r.Status, r.TotalBillAmount, r.Error)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().String("account", "", "only runs for this account")
	runsCmd.Flags().Int("limit", ledger.DefaultListLimit, "maximum runs to list")
}

func newService(cmd *cobra.Command) (*billing.Service, error) {
	runs, err := openLedger(cmd)
	if err != nil {
		return nil, err
	}
	cards := ratecard.NewCache(ratecard.FileLoader(cfg.RateCardOptions()))
	return billing.NewService(cards, runs, billing.Options{
		MaxErrorLength:  cfg.Billing.MaxErrorLength,
		DebugSampleRows: cfg.Billing.DebugSampleRows,
	}), nil
}

func openLedger(cmd *cobra.Command) (*ledger.Service, error) {
	if skip, _ := cmd.Flags().GetBool("no-ledger"); skip || !cfg.Ledger.Enabled {
		return ledger.NewService(nil), nil
	}
	db, err := database.NewDatabase(cfg.Ledger.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return ledger.NewService(ledger.NewDatabase(db)), nil
}

func addExtractFlags(cmd *cobra.Command) {
	cmd.Flags().String("trade-date", "", "trade date, e.g. 2026-02-12")
	cmd.Flags().String("daywise", "", "day wise CSV extract")
	cmd.Flags().String("netwise", "", "net wise CSV extract")
	cmd.Flags().StringP("out", "o", "", "output file or directory (default: current directory)")
	for _, f := range settlement.IndexFields {
		cmd.Flags().String(closeFlag(f.Field), "", fmt.Sprintf("manual close for %s", f.Symbol))
	}
	_ = cmd.MarkFlagRequired("trade-date")
	_ = cmd.MarkFlagRequired("daywise")
	_ = cmd.MarkFlagRequired("netwise")
}

// closeFlag turns a form field such as close_nifty into close-nifty.
func closeFlag(field string) string {
	return strings.ReplaceAll(field, "_", "-")
}

func closesFromFlags(cmd *cobra.Command) (settlement.ManualCloses, error) {
	return settlement.BuildManualCloses(func(field string) string {
		v, _ := cmd.Flags().GetString(closeFlag(field))
		return v
	})
}

func openExtracts(cmd *cobra.Command) (*os.File, *os.File, func(), error) {
	dayPath, _ := cmd.Flags().GetString("daywise")
	netPath, _ := cmd.Flags().GetString("netwise")

	day, err := os.Open(dayPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open daywise extract: %w", err)
	}
	net, err := os.Open(netPath)
	if err != nil {
		day.Close()
		return nil, nil, nil, fmt.Errorf("open netwise extract: %w", err)
	}
	return day, net, func() {
		day.Close()
		net.Close()
	}, nil
}

// outputPath resolves --out. A directory, or an empty flag, receives the
// default file name.
func outputPath(cmd *cobra.Command, name string) (string, error) {
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		return name, nil
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, name), nil
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return out, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
