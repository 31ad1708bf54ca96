package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ksred/klear-bill/internal/charges"
	"github.com/ksred/klear-bill/internal/settlement"
	"github.com/ksred/klear-bill/internal/types"
	"github.com/ksred/klear-bill/pkg/response"
)

const (
	contentTypePDF = "application/pdf"
	contentTypeZip = "application/zip"
	batchIDHeader  = "X-Batch-ID"
	runIDHeader    = "X-Run-ID"
)

// GinHandlers contains HTTP handlers for billing endpoints
type GinHandlers struct {
	service   *Service
	maxUpload int64
}

func NewGinHandlers(service *Service, maxUpload int64) *GinHandlers {
	return &GinHandlers{
		service:   service,
		maxUpload: maxUpload,
	}
}

// Register mounts the billing routes.
func (h *GinHandlers) Register(router gin.IRouter) {
	router.GET("/health", h.HealthHandler())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/rate-card", h.RateCardHandler())

		bills := v1.Group("/bills")
		{
			bills.POST("", h.GenerateHandler())
			bills.POST("/edit", h.EditHandler())
			bills.GET("/runs", h.RunsHandler())
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/bills", h.BatchHandler())
		}
	}
}

func (h *GinHandlers) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, gin.H{"status": "healthy"})
	}
}

// RateCardHandler returns the loaded rate card.
func (h *GinHandlers) RateCardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		card, err := h.service.RateCard()
		response.Handle(c, card, err)
	}
}

// GenerateHandler handles multipart POSTs carrying account, trade_date,
// daywise_file and netwise_file, plus optional close_* index closes and
// overrides/additions JSON arrays. It returns the bill PDF, or the debug
// view when ?debug=true.
func (h *GinHandlers) GenerateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.limitBody(c)

		account := c.PostForm("account")
		if account == "" {
			response.BadRequest(c, "account is required")
			return
		}
		tradeDate := c.PostForm("trade_date")
		if tradeDate == "" {
			response.BadRequest(c, "trade_date is required")
			return
		}

		closes, err := settlement.BuildManualCloses(c.PostForm)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		overrides, err := charges.ParseOverrides(c.PostForm("overrides"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		additions, err := charges.ParseAdditions(c.PostForm("additions"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		daywise, netwise, err := h.uploads(c)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		g, err := h.service.Generate(c.Request.Context(), GenerateRequest{
			Account:   account,
			TradeDate: tradeDate,
			Daywise:   daywise,
			Netwise:   netwise,
			Closes:    closes,
			Overrides: overrides,
			Additions: additions,
		})
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		if debug, _ := strconv.ParseBool(c.Query("debug")); debug {
			response.Success(c, h.service.Debug(g))
			return
		}

		pdf, err := h.service.RenderPDF(g)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		c.Header(runIDHeader, g.RunID)
		attach(c, g.Bill.Filename(), contentTypePDF, pdf)
	}
}

type editBody struct {
	Account   string          `json:"account"`
	TradeDate string          `json:"trade_date"`
	Charges   *charges.Result `json:"charges"`
	Overrides json.RawMessage `json:"overrides"`
	Additions json.RawMessage `json:"additions"`
}

// EditHandler applies overrides and additions to a previously returned
// charge set.
func (h *GinHandlers) EditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body editBody
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, "request body must be a JSON object with charges")
			return
		}

		overrides, err := charges.ParseOverrides(string(body.Overrides))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		additions, err := charges.ParseAdditions(string(body.Additions))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		result, err := h.service.Edit(EditRequest{
			Account:   body.Account,
			TradeDate: body.TradeDate,
			Charges:   body.Charges,
			Overrides: overrides,
			Additions: additions,
		})
		response.Handle(c, result, err)
	}
}

// BatchHandler bills every account in an admin upload and returns a ZIP.
func (h *GinHandlers) BatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.limitBody(c)

		tradeDate := c.PostForm("trade_date")
		if tradeDate == "" {
			response.BadRequest(c, "trade_date is required")
			return
		}
		closes, err := settlement.BuildManualCloses(c.PostForm)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		daywise, netwise, err := h.uploads(c)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		res, err := h.service.RunBatch(c.Request.Context(), BatchRequest{
			TradeDate: tradeDate,
			Daywise:   daywise,
			Netwise:   netwise,
			Closes:    closes,
		})
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		var buf bytes.Buffer
		if err := res.WriteZip(&buf); err != nil {
			response.Handle(c, nil, err)
			return
		}
		c.Header(batchIDHeader, res.Manifest.BatchID)
		attach(c, res.Filename(), contentTypeZip, buf.Bytes())
	}
}

// RunsHandler lists recent ledger entries, optionally filtered by ?account=.
func (h *GinHandlers) RunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				response.BadRequest(c, "limit must be a positive integer")
				return
			}
			limit = n
		}

		runs, err := h.service.Runs(c.Query("account"), limit)
		response.Handle(c, runs, err)
	}
}

func (h *GinHandlers) limitBody(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
}

// uploads returns readers for the two extracts. A missing file yields a nil
// reader, which the service reports by name.
func (h *GinHandlers) uploads(c *gin.Context) (io.Reader, io.Reader, error) {
	daywise, err := formFile(c, "daywise_file")
	if err != nil {
		return nil, nil, err
	}
	netwise, err := formFile(c, "netwise_file")
	if err != nil {
		return nil, nil, err
	}
	return daywise, netwise, nil
}

func formFile(c *gin.Context, field string) (io.Reader, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, types.NewInputError("could not read %s: %v", field, err)
	}
	return readFile(fh)
}

func readFile(fh *multipart.FileHeader) (io.Reader, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return bytes.NewReader(data), nil
}

func attach(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}
