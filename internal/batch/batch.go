// Package batch bills every account in a pair of admin extracts and packs
// the results into one archive.
package batch

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-bill/internal/bill"
	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/internal/report"
	"github.com/ksred/klear-bill/internal/settlement"
	"github.com/ksred/klear-bill/internal/types"
	"github.com/ksred/klear-bill/internal/upload"
)

const (
	ManifestName          = "manifest.json"
	DefaultMaxErrorLength = 300
)

// Options configure one batch run.
type Options struct {
	TradeDate      string
	Closes         settlement.ManualCloses
	MaxErrorLength int
}

// Entry is a successfully billed account in the manifest.
type Entry struct {
	Key string `json:"key"`
	PDF string `json:"pdf"`
	report.SummaryRow
}

// Manifest describes the archive contents.
type Manifest struct {
	BatchID     string               `json:"batch_id"`
	TradeDate   string               `json:"trade_date"`
	GroupKey    string               `json:"group_key"`
	Success     []Entry              `json:"success"`
	Failures    []Failure            `json:"failures"`
	NetwiseOnly []string             `json:"netwise_only"`
	Totals      report.SummaryTotals `json:"totals"`
	Files       []string             `json:"files"`
}

// Result is a completed batch.
type Result struct {
	Manifest Manifest
	Bills    []*bill.Bill
	files    map[string][]byte
}

// Run bills each account sequentially. An account that fails is recorded in
// the manifest and the run continues. Only card-wide problems stop the run
// before any account is billed.
func Run(ctx context.Context, day, net *upload.Table, card *ratecard.RateCard, opts Options) (*Result, error) {
	batchID := "BATCH_" + uuid.New().String()
	logger := log.With().
		Str("batch_id", batchID).
		Str("trade_date", opts.TradeDate).
		Str("service", "batch").
		Logger()

	if _, err := bill.ParseTradeDate(opts.TradeDate); err != nil {
		return nil, err
	}
	if card == nil {
		return nil, types.NewConfigError("Rate card is not loaded.")
	}
	maxLen := opts.MaxErrorLength
	if maxLen <= 0 {
		maxLen = DefaultMaxErrorLength
	}

	cols, err := ResolveGroupColumns(day, net)
	if err != nil {
		return nil, err
	}

	dayGroups, failures := GroupRows(day.TradeRows(), cols.GroupKey, cols.DaywiseUser, upload.Daywise)
	netGroups, netFailures := GroupRows(net.TradeRows(), cols.GroupKey, cols.NetwiseUser, upload.Netwise)
	failures = append(failures, netFailures...)

	res := &Result{
		Manifest: Manifest{
			BatchID:     batchID,
			TradeDate:   opts.TradeDate,
			GroupKey:    cols.GroupKey,
			Success:     []Entry{},
			NetwiseOnly: NetwiseOnlyKeys(dayGroups, netGroups),
		},
		files: map[string][]byte{},
	}

	logger.Info().
		Str("group_key", cols.GroupKey).
		Int("accounts", len(dayGroups.Keys)).
		Int("netwise_only", len(res.Manifest.NetwiseOnly)).
		Msg("starting batch")

	var docs []report.Account
	var summary []report.SummaryRow
	for _, key := range SortNatural(dayGroups.Keys) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch cancelled: %w", err)
		}

		b, pdf, err := billAccount(key, dayGroups.Rows[key], netGroups.Rows[key], card, opts)
		if err != nil {
			logger.Warn().Err(err).Str("account", key).Msg("account failed")
			failures = append(failures, Failure{Key: key, Error: truncate(err.Error(), maxLen)})
			continue
		}

		name := uniqueName(res.files, b.Filename())
		res.files[name] = pdf
		res.Bills = append(res.Bills, b)
		docs = append(docs, b.Document())

		row := b.Summary()
		summary = append(summary, row)
		res.Manifest.Success = append(res.Manifest.Success, Entry{Key: key, PDF: name, SummaryRow: row})
	}
	if failures == nil {
		failures = []Failure{}
	}
	res.Manifest.Failures = failures
	res.Manifest.Totals = report.Summarize(summary)

	date := bill.SanitizeFilenamePart(opts.TradeDate)
	consolidated, err := report.RenderConsolidated(docs)
	if err != nil {
		return nil, err
	}
	res.files[fmt.Sprintf("Bill_Admin_%s.pdf", date)] = consolidated

	summaryPDF, err := report.RenderAdminSummary(opts.TradeDate, summary)
	if err != nil {
		return nil, err
	}
	res.files[fmt.Sprintf("Summary_Admin_Closing_Adjustment_%s.pdf", date)] = summaryPDF

	names := make([]string, 0, len(res.files)+1)
	for name := range res.files {
		names = append(names, name)
	}
	res.Manifest.Files = SortNatural(append(names, ManifestName))

	manifest, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	res.files[ManifestName] = manifest

	logger.Info().
		Int("billed", len(res.Manifest.Success)).
		Int("failed", len(res.Manifest.Failures)).
		Msg("batch complete")

	return res, nil
}

func billAccount(key string, daywise, netwise []types.TradeRow, card *ratecard.RateCard, opts Options) (*bill.Bill, []byte, error) {
	b, err := bill.Generate(bill.Request{
		Account:   key,
		TradeDate: opts.TradeDate,
		Daywise:   daywise,
		Netwise:   netwise,
		Closes:    opts.Closes,
	}, card)
	if err != nil {
		return nil, nil, err
	}

	pdf, err := report.RenderAccount(b.Document())
	if err != nil {
		return nil, nil, err
	}
	return b, pdf, nil
}

// File returns a generated file by name.
func (r *Result) File(name string) ([]byte, bool) {
	data, ok := r.files[name]
	return data, ok
}

// Filename is the archive download name.
func (r *Result) Filename() string {
	return fmt.Sprintf("Bills_%s.zip", bill.SanitizeFilenamePart(r.Manifest.TradeDate))
}

// WriteZip writes every file in manifest order.
func (r *Result) WriteZip(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, name := range r.Manifest.Files {
		f, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("add %s to archive: %w", name, err)
		}
		if _, err := f.Write(r.files[name]); err != nil {
			return fmt.Errorf("write %s to archive: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// uniqueName suffixes name when two accounts sanitize to the same file.
func uniqueName(files map[string][]byte, name string) string {
	if _, taken := files[name]; !taken {
		return name
	}
	base := strings.TrimSuffix(name, ".pdf")
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d.pdf", base, i)
		if _, taken := files[candidate]; !taken {
			return candidate
		}
	}
}

func truncate(msg string, max int) string {
	if utf8.RuneCountInString(msg) <= max {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:max])
}
