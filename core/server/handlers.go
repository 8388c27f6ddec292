package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richd0tcom/heartline/internal/aggregator"
	"github.com/richd0tcom/heartline/internal/domain"
	"github.com/richd0tcom/heartline/internal/ingest"
)

const ingestSource = "http"

type rejection struct {
	Index    int    `json:"index"`
	DeviceID string `json:"deviceId,omitempty"`
	Error    string `json:"error"`
}

func (s *Server) handleIngest(c *gin.Context) {
	var bulk domain.BulkDeviceMessages
	if err := c.ShouldBindJSON(&bulk); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(bulk.Data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	accepted := make([]domain.Reading, 0, len(bulk.Data))
	rejected := []rejection{}
	for i, msg := range bulk.Data {
		reading, err := s.validator.Validate(ctx, msg)
		if err != nil {
			reason := ingest.Reason(err)
			if reason == "internal" {
				s.config.logger().Error("ingest validation failed", "device", msg.DeviceID, "err", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate data"})
				return
			}
			s.config.Metrics.ReadingsRejected.WithLabelValues(ingestSource, reason).Inc()
			rejected = append(rejected, rejection{Index: i, DeviceID: msg.DeviceID, Error: err.Error()})
			continue
		}
		accepted = append(accepted, reading)
	}

	if len(accepted) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid measurements", "rejected": rejected})
		return
	}

	data, err := json.Marshal(domain.BulkReadings{Data: accepted})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize data"})
		return
	}

	if err := s.config.MessageQueue.Publish(ctx, data); err != nil {
		s.config.logger().Error("failed to publish readings", "count", len(accepted), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish data"})
		return
	}
	s.config.Metrics.ReadingsIngested.WithLabelValues(ingestSource).Add(float64(len(accepted)))

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "data accepted for processing",
		"accepted": len(accepted),
		"rejected": rejected,
	})
}

type windowFunc func(now time.Time) domain.Window

var (
	dailyWindow   windowFunc = aggregator.DailyWindow
	weeklyWindow  windowFunc = aggregator.WeeklyWindow
	monthlyWindow windowFunc = aggregator.MonthlyWindow
)

func (s *Server) now() time.Time {
	return s.config.Now().In(s.config.Location)
}

func (s *Server) handleWindowSummary(window windowFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.summarize(c, window(s.now()))
	}
}

func (s *Server) handleDateSummary(c *gin.Context) {
	window, err := aggregator.DateWindow(c.Param("date"), s.config.Location)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.summarize(c, window)
}

func (s *Server) summarize(c *gin.Context, window domain.Window) {
	readings, ok := s.fetchReadings(c, window)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, aggregator.Summarize(readings, window))
}

func (s *Server) handleWeeklyChart(c *gin.Context) {
	ref := s.now()
	if date := c.Query("date"); date != "" {
		day, err := aggregator.DateWindow(date, s.config.Location)
		if err != nil {
			s.respondError(c, err)
			return
		}
		ref = day.Start
	}

	readings, ok := s.fetchReadings(c, aggregator.ChartWindow(ref))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, aggregator.BuildWeeklyChart(readings, ref))
}

func (s *Server) fetchReadings(c *gin.Context, window domain.Window) ([]domain.Reading, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	readings, err := s.config.DataStore.Readings(ctx, c.Param("subjectId"), window)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return readings, true
}

func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, aggregator.ErrMalformedWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	default:
		s.config.logger().Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
