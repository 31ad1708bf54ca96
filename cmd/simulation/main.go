package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-bill/internal/upload"
)

const (
	minAccounts = 5
	maxAccounts = 40
	numWorkers  = 5
	tradeDate   = "2026-02-12"
)

type contract struct {
	symbol  string
	segment string
	price   float64
	lot     int
}

var contracts = []contract{
	{"NIFTY 26FEB2026 22000 CE", "NFO", 180, 75},
	{"NIFTY 26FEB2026 21800 PE", "NFO", 95, 75},
	{"NIFTY 26FEB2026 FUT", "NFO", 22050, 75},
	{"BANKNIFTY 26FEB2026 48000 CE", "NFO", 420, 30},
	{"SENSEX 27FEB2026 73000 CE", "BFO", 310, 20},
	{"SENSEX 27FEB2026 FUT", "BFO", 72900, 20},
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks latency for one API route
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate returns min, max, mean, median, p95 and p99 latencies.
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95 = rs.durations[int(math.Ceil(float64(len(rs.durations))*0.95))-1]
	p99 = rs.durations[int(math.Ceil(float64(len(rs.durations))*0.99))-1]
	return
}

// simulationClient drives the billing API over HTTP
type simulationClient struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	stats map[string]*routeStats
}

func newSimulationClient(baseURL string) *simulationClient {
	return &simulationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		stats: map[string]*routeStats{
			"bill":  {name: "Generate Bill"},
			"batch": {name: "Admin Batch"},
			"runs":  {name: "List Runs"},
		},
	}
}

func (sc *simulationClient) record(route string, start time.Time, err error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	s := sc.stats[route]
	s.addDuration(time.Since(start))
	if err != nil {
		s.failures++
	}
}

type billSummary struct {
	RunID   string `json:"run_id"`
	Charges struct {
		TotalExpenses   float64 `json:"total_expenses"`
		TotalBillAmount float64 `json:"total_bill_amount"`
	} `json:"charges"`
}

// generateBill posts one account's extracts and returns the debug view.
func (sc *simulationClient) generateBill(account string, daywise, netwise []byte) (summary *billSummary, err error) {
	start := time.Now()
	defer func() { sc.record("bill", start, err) }()

	body, contentType, err := multipartBody(map[string]string{
		"account":    account,
		"trade_date": tradeDate,
	}, daywise, netwise)
	if err != nil {
		return nil, err
	}

	respBody, err := sc.post("/api/v1/bills?debug=true", contentType, body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool        `json:"success"`
		Data    billSummary `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return &result.Data, nil
}

// runBatch posts the admin extracts and returns the ZIP size.
func (sc *simulationClient) runBatch(daywise, netwise []byte) (size int, err error) {
	start := time.Now()
	defer func() { sc.record("batch", start, err) }()

	body, contentType, err := multipartBody(map[string]string{"trade_date": tradeDate}, daywise, netwise)
	if err != nil {
		return 0, err
	}
	respBody, err := sc.post("/api/v1/admin/bills", contentType, body)
	if err != nil {
		return 0, err
	}
	return len(respBody), nil
}

func (sc *simulationClient) listRuns() (count int, err error) {
	start := time.Now()
	defer func() { sc.record("runs", start, err) }()

	resp, err := sc.client.Get(sc.baseURL + "/api/v1/bills/runs?limit=500")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("list runs failed with status %d", resp.StatusCode)
	}
	var result struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	return len(result.Data), nil
}

func (sc *simulationClient) post(path, contentType string, body io.Reader) ([]byte, error) {
	resp, err := sc.client.Post(sc.baseURL+path, contentType, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("POST %s failed with status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func multipartBody(fields map[string]string, daywise, netwise []byte) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for name, data := range map[string][]byte{"daywise_file": daywise, "netwise_file": netwise} {
		part, err := w.CreateFormFile(name, name+".csv")
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &body, w.FormDataContentType(), nil
}

// buildExtracts writes random daywise and netwise extracts for accounts.
// Every account trades at least one contract; roughly half carry an open
// position into the netwise extract.
func buildExtracts(r *rand.Rand, accounts []string) (daywise, netwise []byte, err error) {
	header := []string{
		upload.ColAccount, upload.ColTradingSymbol, upload.ColSegment,
		upload.ColBuyQty, upload.ColSellQty, upload.ColNetQty,
		upload.ColBuyAvgPrice, upload.ColSellAvgPrice,
		upload.ColBuyValue, upload.ColSellValue, upload.ColMarkToMarket,
		upload.ColLotSize, upload.ColLastTradePrice,
	}

	var day, net bytes.Buffer
	dw, nw := csv.NewWriter(&day), csv.NewWriter(&net)
	if err := dw.Write(header); err != nil {
		return nil, nil, err
	}
	if err := nw.Write(header); err != nil {
		return nil, nil, err
	}

	for _, account := range accounts {
		for _, i := range r.Perm(len(contracts))[:1+r.Intn(3)] {
			c := contracts[i]
			buyLots := 1 + r.Intn(4)
			sellLots := r.Intn(buyLots + 1)
			buyQty := float64(buyLots * c.lot)
			sellQty := float64(sellLots * c.lot)
			buyPrice := c.price * (0.98 + r.Float64()*0.04)
			sellPrice := c.price * (0.98 + r.Float64()*0.04)
			netQty := buyQty - sellQty
			ltp := c.price * (0.97 + r.Float64()*0.06)

			buyValue := round2(buyQty * buyPrice)
			sellValue := round2(sellQty * sellPrice)
			mtm := round2(sellValue - buyValue + netQty*ltp)

			rec := []string{
				account, c.symbol, c.segment,
				fmtFloat(buyQty), fmtFloat(sellQty), fmtFloat(netQty),
				fmtFloat(round2(buyPrice)), fmtFloat(round2(sellPrice)),
				fmtFloat(buyValue), fmtFloat(sellValue), fmtFloat(mtm),
				fmt.Sprintf("%d", c.lot), fmtFloat(round2(ltp)),
			}
			if err := dw.Write(rec); err != nil {
				return nil, nil, err
			}
			if netQty != 0 && r.Intn(2) == 0 {
				if err := nw.Write(rec); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	dw.Flush()
	nw.Flush()
	if err := dw.Error(); err != nil {
		return nil, nil, err
	}
	if err := nw.Error(); err != nil {
		return nil, nil, err
	}
	return day.Bytes(), net.Bytes(), nil
}

// filterAccount keeps the header and the rows belonging to account.
func filterAccount(extract []byte, account string) ([]byte, error) {
	records, err := csv.NewReader(bytes.NewReader(extract)).ReadAll()
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	w := csv.NewWriter(&out)
	for i, rec := range records {
		if i == 0 || rec[0] == account {
			if err := w.Write(rec); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return out.Bytes(), w.Error()
}

// billAccount cuts one account out of the admin extracts and bills it.
func billAccount(sc *simulationClient, account string, daywise, netwise []byte) (*billSummary, error) {
	day, err := filterAccount(daywise, account)
	if err != nil {
		return nil, err
	}
	net, err := filterAccount(netwise, account)
	if err != nil {
		return nil, err
	}
	return sc.generateBill(account, day, net)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func fmtFloat(v float64) string { return fmt.Sprintf("%.2f", v) }

// main generates random accounts, bills each one concurrently, runs the
// admin batch over all of them and reports per-route latency.
func main() {
	baseURL := os.Getenv("SIMULATION_SERVER")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	numAccounts := minAccounts + r.Intn(maxAccounts-minAccounts+1)
	accounts := make([]string, numAccounts)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("PR%02d", i+1)
	}

	daywise, netwise, err := buildExtracts(r, accounts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build extracts")
	}

	simClient := newSimulationClient(baseURL)
	start := time.Now()
	log.Info().Int("accounts", numAccounts).Int("workers", numWorkers).Str("server", baseURL).Msg("Starting billing simulation")

	jobs := make(chan string)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		billed int
		total  float64
	)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for account := range jobs {
				summary, err := billAccount(simClient, account, daywise, netwise)
				if err != nil {
					log.Error().Err(err).Int("worker_id", workerID).Str("account", account).Msg("Failed to generate bill")
					continue
				}

				mu.Lock()
				billed++
				total += summary.Charges.TotalBillAmount
				mu.Unlock()
				log.Info().
					Int("worker_id", workerID).
					Str("account", account).
					Str("run_id", summary.RunID).
					Float64("total_expenses", summary.Charges.TotalExpenses).
					Float64("total_bill_amount", summary.Charges.TotalBillAmount).
					Msg("Bill generated")
			}
		}(w)
	}
	for _, account := range accounts {
		jobs <- account
	}
	close(jobs)
	wg.Wait()

	size, err := simClient.runBatch(daywise, netwise)
	if err != nil {
		log.Error().Err(err).Msg("Admin batch failed")
	} else {
		log.Info().Int("zip_bytes", size).Msg("Admin batch completed")
	}

	runs, err := simClient.listRuns()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list runs")
	}

	duration := time.Since(start)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BILLING SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Accounts:         %d
Billed:           %d
Failed:           %d
Total Billed:     %.2f
Ledger Runs:      %d
Duration:         %v
`, numAccounts, billed, numAccounts-billed, total, runs, duration.Round(time.Millisecond))

	simClient.printPerformanceStats()
}

func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("API PERFORMANCE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%-14s %6s %6s %10s %10s %10s %10s %10s %10s\n",
		"Route", "Calls", "Fails", "Min", "Max", "Mean", "Median", "P95", "P99")

	for _, key := range []string{"bill", "batch", "runs"} {
		s := sc.stats[key]
		min, max, mean, median, p95, p99 := s.calculate()
		fmt.Printf("%-14s %6d %6d %10v %10v %10v %10v %10v %10v\n",
			s.name, s.totalCalls, s.failures,
			min.Round(time.Millisecond), max.Round(time.Millisecond), mean.Round(time.Millisecond),
			median.Round(time.Millisecond), p95.Round(time.Millisecond), p99.Round(time.Millisecond))
	}
}
