package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/wisunmeter/internal/observability/logger"
	telemetrydomain "github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/export"
	"go.uber.org/zap"
)

// httpReporter answers the ingest request with the pipeline outcome.
type httpReporter struct {
	c   *gin.Context
	log *zap.Logger
}

func (r *httpReporter) Accepted(_ context.Context, record *telemetrydomain.Record) {
	r.c.Set("device_id", record.DeviceID)
	r.c.Set("node_id", record.NodeID)
	r.c.JSON(http.StatusCreated, gin.H{"data": record})
}

func (r *httpReporter) Rejected(ctx context.Context, err error) {
	var validation *telemetrydomain.ValidationError
	if errors.As(err, &validation) {
		logger.WithContext(ctx, r.log).Debug("telemetry rejected", zap.Strings("fields", validation.Fields()))
	}
	AbortWithError(r.c, err)
}

func (s *Server) IngestMeterData(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, newValidationError("request", telemetrydomain.CodeMalformedPayload, "payload too large"))
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	s.telemetry.Handle(c.Request.Context(), raw, telemetrydomain.SourceHTTP, &httpReporter{c: c, log: s.log})
}

func (s *Server) GetLatestMeterData(c *gin.Context) {
	record, err := s.telemetry.Latest(
		c.Request.Context(),
		strings.TrimSpace(c.Param("deviceId")),
		strings.TrimSpace(c.Param("nodeId")),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) GetMeterHistory(c *gin.Context) {
	req, err := historyRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	records, err := s.telemetry.History(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(records), "data": records})
}

func (s *Server) ExportMeterHistory(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", export.FormatPDF)))
	if format != export.FormatPDF && format != export.FormatXLSX {
		AbortWithError(c, export.ErrUnsupportedFormat)
		return
	}

	req, err := historyRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	records, err := s.telemetry.History(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := export.Render(format, export.History{
		DeviceID:    req.DeviceID,
		NodeID:      req.NodeID,
		GeneratedAt: s.clock.Now(),
		Records:     records,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

func (s *Server) GetDeviceLatestMeterData(c *gin.Context) {
	records, err := s.telemetry.DeviceLatest(c.Request.Context(), strings.TrimSpace(c.Param("deviceId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(records), "data": records})
}

func historyRequest(c *gin.Context) (telemetrydomain.HistoryRequest, error) {
	var query struct {
		StartDate string `form:"startDate"`
		EndDate   string `form:"endDate"`
		Limit     string `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		return telemetrydomain.HistoryRequest{}, invalidRequestError()
	}

	limit := 0
	if raw := strings.TrimSpace(query.Limit); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return telemetrydomain.HistoryRequest{}, newValidationError("limit", "invalid_limit", "limit must be an integer")
		}
		limit = parsed
	}

	return telemetrydomain.HistoryRequest{
		DeviceID:  strings.TrimSpace(c.Param("deviceId")),
		NodeID:    strings.TrimSpace(c.Param("nodeId")),
		StartDate: strings.TrimSpace(query.StartDate),
		EndDate:   strings.TrimSpace(query.EndDate),
		Limit:     limit,
	}, nil
}
