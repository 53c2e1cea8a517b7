package analysis

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"farmdata-backend/internal/llm"
	"farmdata-backend/internal/shared/server/middleware"
	"farmdata-backend/internal/shared/server/respond"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler wires HTTP handlers to the analysis service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.analyze)
	rg.GET("/analyses", h.listRuns)
	rg.GET("/analyses/:id", h.getRun)
	rg.GET("/models", h.models)
}

func (h *Handler) analyze(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	c.Set(middleware.FileCountKey, len(req.FileIDs))

	result, err := h.Svc.Analyze(c.Request.Context(), middleware.UserIDFromContext(c), middleware.IsGuest(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.AnalysisIDKey, result.RunID)
	c.Set(middleware.ModelKey, result.Model)
	respond.OK(c, result)
}

func (h *Handler) listRuns(c *gin.Context) {
	if !requireAccount(c) {
		return
	}
	limit, ok := queryInt(c, "limit", defaultPageSize)
	if !ok || limit < 1 || limit > maxPageSize {
		respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be between 1 and 100", nil)
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok || offset < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "offset must be zero or greater", nil)
		return
	}

	runs, err := h.Svc.ListRuns(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"runs":   runs,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) getRun(c *gin.Context) {
	if !requireAccount(c) {
		return
	}
	run, err := h.Svc.GetRun(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, run)
}

// requireAccount rejects guests, whose runs are never recorded.
func requireAccount(c *gin.Context) bool {
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusForbidden, "login_required", "sign in to view analysis history", nil)
		return false
	}
	return true
}

func (h *Handler) models(c *gin.Context) {
	respond.OK(c, gin.H{
		"defaultModel": h.Svc.ResolvedDefaultModel(),
		"capabilities": h.Svc.Models(),
		"fallback":     llm.LegacyCapability,
	})
}

func writeError(c *gin.Context, err error) {
	var providerErr *llm.ProviderError
	switch {
	case errors.Is(err, ErrValidation):
		respond.Error(c, http.StatusBadRequest, "validation_error", strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "), nil)
	case errors.Is(err, ErrUnauthorized):
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	case errors.Is(err, ErrNoReadableContent):
		respond.Error(c, http.StatusUnprocessableEntity, "no_readable_content", "none of the selected files could be read", nil)
	case errors.Is(err, ErrRunNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "analysis run not found", nil)
	case errors.As(err, &providerErr):
		respond.Error(c, http.StatusBadGateway, "provider_error", "the analysis provider returned an error", providerDetails(providerErr))
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "analysis failed", nil)
	}
}

func providerDetails(err *llm.ProviderError) gin.H {
	details := gin.H{
		"status": err.StatusCode,
		"body":   err.Body,
	}
	// No status means the request never got a response.
	if err.StatusCode == 0 && err.Err != nil {
		details["cause"] = err.Err.Error()
	}
	return details
}

func queryInt(c *gin.Context, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
