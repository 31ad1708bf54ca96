package billing

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/klear-bill/internal/ledger"
	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/internal/types"
)

const csvHeader = "Account Id,TradingSymbol,Exchg.Seg,BuyQty,SellQty,NetQty,BuyAvgPrice,SellAvgPrice,Actual Buy Value,Actual Sell Value,Actual Mark To Market\n"

const daywiseCSV = csvHeader +
	"PR05,NIFTY 26FEB2026 FUT,NFO,75,75,0,22000,22010,1650000,1650750,750\n" +
	"PR06,NIFTY 26FEB2026 FUT,NFO,75,0,75,22000,0,1650000,0,0\n"

const netwiseCSV = csvHeader +
	"PR06,NIFTY 26FEB2026 FUT,NFO,75,0,75,22000,0,1650000,0,0\n"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testCard() *ratecard.RateCard {
	return ratecard.New("test.xlsx", []ratecard.Rule{
		{Key: ratecard.KeyNSETurnover, Label: "NSE Turnover", GST: true, Rates: ratecard.Rates{Futures: 0.00173, Options: 0.03503}},
		{Key: ratecard.KeyNSEClearing, Label: "NSE Clearing", GST: true, Rates: ratecard.Rates{Futures: 0.0005, Options: 0.0005}},
		{Key: ratecard.KeyNSESTT, Label: "NSE STT", BaseSide: ratecard.SideSell, Rates: ratecard.Rates{Futures: 0.02, Options: 0.05}},
	})
}

func newRouter(t *testing.T, load ratecard.Loader) (*gin.Engine, *ledger.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ledger.BillRun{}))
	runs := ledger.NewService(ledger.NewDatabase(db))

	svc := NewService(ratecard.NewCache(load), runs, Options{})
	router := gin.New()
	NewGinHandlers(svc, 1<<20).Register(router)
	return router, runs
}

func staticCard() ratecard.Loader {
	return func() (*ratecard.RateCard, error) { return testCard(), nil }
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, content := range files {
		part, err := w.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func bothFiles() map[string]string {
	return map[string]string{"daywise_file": daywiseCSV, "netwise_file": netwiseCSV}
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(t, staticCard())
	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"status":"healthy"}}`, w.Body.String())
}

func TestRateCardHandler(t *testing.T) {
	r, _ := newRouter(t, staticCard())
	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/rate-card", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var card ratecard.RateCard
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &card))
	assert.Equal(t, "test.xlsx", card.Source)
	assert.Len(t, card.Rules, 3)

	broken, _ := newRouter(t, func() (*ratecard.RateCard, error) {
		return nil, types.NewConfigError("Rate card not found at x.xlsx")
	})
	w = serve(broken, httptest.NewRequest(http.MethodGet, "/api/v1/rate-card", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w)
	assert.Equal(t, "CONFIGURATION_ERROR", env.Error.Code)
	assert.Equal(t, "Rate card not found at x.xlsx", env.Error.Message)
}

func TestGeneratePDF(t *testing.T) {
	r, runs := newRouter(t, staticCard())

	req := multipartRequest(t, "/api/v1/bills",
		map[string]string{"account": "PR05", "trade_date": "2026-02-12", "close_nifty": "22100"},
		bothFiles())
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Bill_PR05_2026-02-12.pdf"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	recorded, err := runs.Recent("PR05", 10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, w.Header().Get(runIDHeader), recorded[0].RunID)
	assert.Equal(t, ledger.ModeSingle, recorded[0].Mode)
}

func TestGenerateDebug(t *testing.T) {
	r, _ := newRouter(t, staticCard())

	req := multipartRequest(t, "/api/v1/bills?debug=true",
		map[string]string{
			"account":    "PR05",
			"trade_date": "2026-02-12",
			"additions":  `[{"name":"Courier","amount":"1,000"}]`,
		},
		bothFiles())
	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload DebugPayload
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &payload))
	assert.Equal(t, "parsed", payload.Status)
	assert.Equal(t, "PR05", payload.Account)
	assert.Equal(t, 2, payload.Daywise.Rows)
	assert.InDelta(t, 3300000, payload.Daywise.BuyTurnover, 1e-6)
	assert.InDelta(t, 750, payload.Daywise.NetAmount, 1e-6)
	assert.Equal(t, 1, payload.Netwise.NonzeroNetQtyRows)
	assert.Equal(t, 3, payload.RateCard.RulesCount)
	assert.Equal(t, "Option A", payload.Debug.RoundingPolicy)

	line, ok := payload.Charges.BillLine("CUSTOM_1")
	require.True(t, ok)
	assert.InDelta(t, -1000, line.Amount, 1e-9)
}

func TestGenerateErrors(t *testing.T) {
	testCases := []struct {
		name    string
		fields  map[string]string
		files   map[string]string
		message string
	}{
		{"missing account", map[string]string{"trade_date": "2026-02-12"}, bothFiles(), "account is required"},
		{"missing trade date", map[string]string{"account": "PR05"}, bothFiles(), "trade_date is required"},
		{"missing daywise", map[string]string{"account": "PR05", "trade_date": "2026-02-12"}, map[string]string{"netwise_file": netwiseCSV}, "daywise CSV file is required"},
		{"missing netwise", map[string]string{"account": "PR05", "trade_date": "2026-02-12"}, map[string]string{"daywise_file": daywiseCSV}, "netwise CSV file is required"},
		{"bad close", map[string]string{"account": "PR05", "trade_date": "2026-02-12", "close_sensex": "abc"}, bothFiles(), "Invalid close for SENSEX"},
		{"bad overrides", map[string]string{"account": "PR05", "trade_date": "2026-02-12", "overrides": "{"}, bothFiles(), "overrides must be valid JSON"},
		{"unknown override", map[string]string{"account": "PR05", "trade_date": "2026-02-12", "overrides": `[{"code":"NOPE","amount":1}]`}, bothFiles(), "override code not found in charges"},
		{"empty daywise", map[string]string{"account": "PR05", "trade_date": "2026-02-12"}, map[string]string{"daywise_file": "", "netwise_file": netwiseCSV}, "Day wise CSV file is empty"},
	}

	r, _ := newRouter(t, staticCard())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, multipartRequest(t, "/api/v1/bills", tc.fields, tc.files))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			env := decode(t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, "BAD_REQUEST", env.Error.Code)
			assert.Equal(t, tc.message, env.Error.Message)
		})
	}
}

func TestEditHandler(t *testing.T) {
	r, runs := newRouter(t, staticCard())

	body := `{
		"account": "PR05",
		"trade_date": "2026-02-12",
		"charges": {
			"bill_lines": [
				{"code": "TOC_NSE", "label": "TOC NSE Exchange", "amount": -100},
				{"code": "CGST_9", "label": "CGST 9%", "amount": -9},
				{"code": "SGST_9", "label": "SGST 9%", "amount": -9}
			],
			"net_amount": 1000
		},
		"overrides": [{"code": "TOC_NSE", "amount": 200}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bills/edit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res EditResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.InDelta(t, 200, res.Charges.GSTBase, 1e-9)
	assert.InDelta(t, -236, res.Charges.TotalExpenses, 1e-9)
	assert.InDelta(t, 764, res.Charges.TotalBillAmount, 1e-9)

	recorded, err := runs.Recent("PR05", 10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, ledger.ModeEdit, recorded[0].Mode)

	bad := httptest.NewRequest(http.MethodPost, "/api/v1/bills/edit", strings.NewReader(`{"account":"PR05"}`))
	bad.Header.Set("Content-Type", "application/json")
	w = serve(r, bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "charges are required", decode(t, w).Error.Message)
}

func TestBatchHandler(t *testing.T) {
	r, runs := newRouter(t, staticCard())

	w := serve(r, multipartRequest(t, "/api/v1/admin/bills", map[string]string{"trade_date": "2026-02-12"}, bothFiles()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Bills_2026-02-12.zip"`, w.Header().Get("Content-Disposition"))
	batchID := w.Header().Get(batchIDHeader)
	assert.True(t, strings.HasPrefix(batchID, "BATCH_"))

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	assert.Equal(t, []string{
		"Bill_Admin_2026-02-12.pdf",
		"Summary_Admin_Closing_Adjustment_2026-02-12.pdf",
		"Bill_PR05_2026-02-12.pdf",
		"Bill_PR06_2026-02-12.pdf",
		"manifest.json",
	}, names)

	recorded, err := runs.Recent("", 10)
	require.NoError(t, err)
	require.Len(t, recorded, 2)
	for _, run := range recorded {
		assert.Equal(t, batchID, run.BatchID)
	}
}

func TestBatchHandlerErrors(t *testing.T) {
	r, _ := newRouter(t, staticCard())

	w := serve(r, multipartRequest(t, "/api/v1/admin/bills", nil, bothFiles()))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "trade_date is required", decode(t, w).Error.Message)

	noAccount := strings.Replace(daywiseCSV, "Account Id,", "", 1)
	noAccount = strings.ReplaceAll(noAccount, "PR05,", "")
	noAccount = strings.ReplaceAll(noAccount, "PR06,", "")
	w = serve(r, multipartRequest(t, "/api/v1/admin/bills",
		map[string]string{"trade_date": "2026-02-12"},
		map[string]string{"daywise_file": noAccount, "netwise_file": netwiseCSV}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Admin file must contain Account Id or User Id column.", decode(t, w).Error.Message)

	broken, _ := newRouter(t, func() (*ratecard.RateCard, error) { return nil, errors.New("boom") })
	w = serve(broken, multipartRequest(t, "/api/v1/admin/bills", map[string]string{"trade_date": "2026-02-12"}, bothFiles()))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRunsHandler(t *testing.T) {
	r, runs := newRouter(t, staticCard())
	runs.RecordEdit("PR05", "2026-02-12", nil)
	runs.RecordEdit("PR06", "2026-02-12", nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/bills/runs?account=PR06", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var listed []ledger.BillRun
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "PR06", listed[0].Account)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/bills/runs?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
