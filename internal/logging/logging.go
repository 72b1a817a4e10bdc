package logging

import (
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/voxture/voxture-backend/internal/config"
)

// Setup initializes the global logger based on configuration
func Setup(cfg *config.LoggingConfig, env string) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer
	if cfg.Format == "json" || env == "production" {
		output = os.Stdout
	} else {
		// Pretty console output for development
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", "voxture").
		Logger()
}

// NewLogger creates a new logger with additional context
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// RequestLogger is a Gin middleware for structured request logging
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID := c.GetString("request_id")

		event := log.Info()
		if c.Writer.Status() >= 500 {
			event = log.Error()
		} else if c.Writer.Status() >= 400 {
			event = log.Warn()
		}

		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", raw).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Int("body_size", c.Writer.Size()).
			Msg("HTTP request")
	}
}

// IngestionLogEntry represents a structured log entry for one ingestion run
type IngestionLogEntry struct {
	RequestID    string        `json:"request_id"`
	OwnerID      string        `json:"owner_id"`
	AgentID      string        `json:"agent_id"`
	DocumentID   string        `json:"document_id"`
	DocumentName string        `json:"document_name"`
	Status       string        `json:"status"`
	FailReason   string        `json:"fail_reason,omitempty"`
	IndexState   string        `json:"index_state,omitempty"`
	Latency      time.Duration `json:"latency_ms"`
}

// LogIngestion logs the outcome of an ingestion pipeline run
func LogIngestion(entry *IngestionLogEntry) {
	event := log.Info()
	if entry.Status == "failed" {
		event = log.Error()
	}

	event.
		Str("request_id", entry.RequestID).
		Str("owner_id", entry.OwnerID).
		Str("agent_id", entry.AgentID).
		Str("document_id", entry.DocumentID).
		Str("document_name", entry.DocumentName).
		Str("status", entry.Status).
		Str("fail_reason", entry.FailReason).
		Str("index_state", entry.IndexState).
		Dur("latency", entry.Latency).
		Msg("Document ingestion")
}

// SanitizeForLog removes sensitive data from strings for logging
func SanitizeForLog(data string, maxLen int) string {
	if len(data) > maxLen {
		return data[:maxLen] + "...[truncated]"
	}
	return data
}
