package files

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"farmdata-backend/internal/shared/server/middleware"
	"farmdata-backend/internal/shared/server/respond"
)

// multipartOverhead is the slack allowed on top of MaxSize for multipart framing.
const multipartOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches file routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/files", h.upload)
	rg.POST("/files/legacy", h.uploadLegacy)
	rg.GET("/files", h.list)
	rg.GET("/files/:category/:id", h.download)
	rg.DELETE("/files/:category/:id", h.delete)
}

func (h *Handler) upload(c *gin.Context) {
	category, err := ParseCategory(c.Query("category"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "category must be farm-data or certification-requirements", nil)
		return
	}
	h.store(c, category)
}

func (h *Handler) uploadLegacy(c *gin.Context) {
	h.store(c, CategoryLegacy)
}

func (h *Handler) store(c *gin.Context, category Category) {
	userID := middleware.UserIDFromContext(c)
	bodyLimit := h.Svc.maxSize() + multipartOverhead
	if c.Request.ContentLength > bodyLimit {
		writeError(c, ErrTooLarge, "")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, bodyLimit)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, ErrTooLarge, "")
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	stored, err := h.Svc.Upload(c.Request.Context(), userID, category, fileHeader.Filename, file)
	if err != nil {
		writeError(c, err, "failed to upload file")
		return
	}
	respond.Created(c, stored)
}

func (h *Handler) list(c *gin.Context) {
	category := CategoryLegacy
	if raw := c.Query("category"); raw != legacySegment {
		parsed, err := ParseCategory(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "category must be farm-data, certification-requirements or legacy", nil)
			return
		}
		category = parsed
	}

	out, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), category)
	if err != nil {
		writeError(c, err, "failed to list files")
		return
	}
	respond.OK(c, gin.H{"files": out})
}

func (h *Handler) download(c *gin.Context) {
	category, ok := pathCategory(c)
	if !ok {
		return
	}
	file, rc, err := h.Svc.Open(c.Request.Context(), middleware.UserIDFromContext(c), category, c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to download file")
		return
	}
	defer rc.Close()

	contentType, _ := contentTypeFor(file.Name)
	size := file.Size
	if size <= 0 {
		size = -1
	}
	respond.Attachment(c, file.Name, contentType, size, rc)
}

func (h *Handler) delete(c *gin.Context) {
	category, ok := pathCategory(c)
	if !ok {
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), category, c.Param("id")); err != nil {
		writeError(c, err, "failed to delete file")
		return
	}
	respond.NoContent(c)
}

// legacySegment names unscoped uploads in paths and queries.
const legacySegment = "legacy"

func pathCategory(c *gin.Context) (Category, bool) {
	raw := c.Param("category")
	if raw == legacySegment {
		return CategoryLegacy, true
	}
	category, err := ParseCategory(raw)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unknown category", nil)
		return "", false
	}
	return category, true
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
	case errors.Is(err, ErrUnsupportedType):
		respond.Error(c, http.StatusBadRequest, "unsupported_file_type", err.Error(), gin.H{"allowed": allowedList()})
	case errors.Is(err, ErrTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the 10 MiB limit", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func allowedList() []string {
	out := make([]string, 0, len(AllowedExtensions))
	for ext := range AllowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
