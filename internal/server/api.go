package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxture/voxture-backend/internal/config"
	"github.com/voxture/voxture-backend/internal/document"
	apierrors "github.com/voxture/voxture-backend/internal/errors"
	"github.com/voxture/voxture-backend/internal/ingest"
	"github.com/voxture/voxture-backend/internal/logging"
	"github.com/voxture/voxture-backend/internal/middleware"
	"github.com/voxture/voxture-backend/internal/models"
	"github.com/voxture/voxture-backend/internal/monitoring"
)

// APIServer represents the main API server
type APIServer struct {
	config       *config.Config
	router       *gin.Engine
	store        *document.Store
	orchestrator *ingest.Orchestrator
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, db *pgxpool.Pool, orchestrator *ingest.Orchestrator) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config:       cfg,
		router:       router,
		store:        document.NewStore(db),
		orchestrator: orchestrator,
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.ServiceAuth(s.config.Server.ServiceToken))
	{
		documents := v1.Group("/documents")
		{
			documents.POST("/", s.handleIngestDocument)
			documents.GET("/", s.handleListDocuments)
			documents.GET("/:id", s.handleGetDocument)
		}
	}
}

// healthCheck reports service liveness
func (s *APIServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "api",
	})
}

// IngestDocumentRequest is the upload payload. Content is plain text;
// file-format extraction happens upstream of this service.
type IngestDocumentRequest struct {
	OwnerID  string  `json:"owner_id" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Content  string  `json:"content" binding:"required"`
	Category *string `json:"category"`
}

// IngestDocumentResponse is returned once the pipeline completes
type IngestDocumentResponse struct {
	ID         uuid.UUID `json:"id"`
	DocumentID string    `json:"document_id"`
	Status     string    `json:"status"`
	IndexState string    `json:"index_state,omitempty"`
}

// handleIngestDocument runs the full ingestion pipeline synchronously.
// The response can take up to the polling ceiling (~60s) to arrive.
func (s *APIServer) handleIngestDocument(c *gin.Context) {
	var req IngestDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	start := time.Now()
	result, err := s.orchestrator.Ingest(c.Request.Context(), &ingest.Request{
		OwnerID:  req.OwnerID,
		Name:     req.Name,
		Content:  req.Content,
		Category: req.Category,
	})

	logging.LogIngestion(&logging.IngestionLogEntry{
		RequestID:    middleware.GetRequestIDFromContext(c),
		OwnerID:      req.OwnerID,
		AgentID:      s.config.Knowledge.AgentID,
		DocumentID:   result.DocumentID,
		DocumentName: logging.SanitizeForLog(req.Name, 120),
		Status:       string(result.Status),
		FailReason:   result.Reason,
		IndexState:   string(result.IndexState),
		Latency:      time.Since(start),
	})

	if result.Status == ingest.StatusFailed {
		respondError(c, ingestionError(result, err))
		return
	}

	doc := &models.Document{
		OwnerID:          req.OwnerID,
		RemoteDocumentID: result.DocumentID,
		Name:             req.Name,
		Category:         req.Category,
		IndexState:       string(result.IndexState),
		Status:           models.DocumentStatus(result.Status),
	}
	if err := s.store.Create(c.Request.Context(), doc); err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, IngestDocumentResponse{
		ID:         doc.ID,
		DocumentID: result.DocumentID,
		Status:     string(result.Status),
		IndexState: string(result.IndexState),
	})
}

// handleListDocuments lists an owner's document records
func (s *APIServer) handleListDocuments(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		respondError(c, apierrors.NewInvalidRequestError("owner_id query parameter is required"))
		return
	}

	docs, err := s.store.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// handleGetDocument returns one document record
func (s *APIServer) handleGetDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid document id"))
		return
	}

	doc, err := s.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, document.ErrDocumentNotFound) {
			respondError(c, apierrors.ErrDocumentNotFoundError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, doc)
}

// ingestionError maps a failed pipeline result onto the API error
// taxonomy
func ingestionError(result *ingest.Result, cause error) *apierrors.APIError {
	var timeout interface{ Timeout() bool }
	if errors.As(cause, &timeout) && timeout.Timeout() {
		return apierrors.ErrUpstreamTimeoutError
	}

	switch result.Reason {
	case ingest.ReasonUpload:
		return apierrors.ErrIngestionUploadError
	case ingest.ReasonIndex:
		return apierrors.ErrIngestionIndexError
	case ingest.ReasonLink:
		return apierrors.ErrIngestionLinkError
	default:
		return apierrors.ErrInternalServerError
	}
}

// respondError sends a standardized error response
func respondError(c *gin.Context, err *apierrors.APIError) {
	c.JSON(err.HTTPStatus, apierrors.ErrorResponse{
		Error:     *err,
		RequestID: middleware.GetRequestIDFromContext(c),
	})
}
