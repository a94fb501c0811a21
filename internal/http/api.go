package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"resource-api/internal/domain"
	"resource-api/internal/service"
)

const (
	msgResourceNotFound = "Resource not found"
	msgAPINotFound      = "API not found"
	msgUnknownError     = "An unknown error occurred"
)

// Handler wires HTTP routes to the resource service.
type Handler struct {
	resources service.ResourceService
	logger    *logrus.Logger
}

func NewHandler(resources service.ResourceService, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Handler{
		resources: resources,
		logger:    logger,
	}
}

// RegisterRoutes mounts the resource API under basePath and installs the
// catch-all for unknown paths.
func (h *Handler) RegisterRoutes(router *gin.Engine, basePath string) {
	api := router.Group(basePath)
	{
		api.POST("/resources", h.createResource)
		api.GET("/resources", h.listResources)
		api.GET("/resources/count", h.countResources)
		api.GET("/resources/lookup", h.findResource)
		api.GET("/resources/:id", h.getResource)
		api.PUT("/resources/:id", h.updateResource)
		api.PATCH("/resources/:id", h.updateResource)
		api.DELETE("/resources/:id", h.deleteResource)
		api.GET("/health", h.health)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": msgAPINotFound})
	})
}

// ResourceResponse is the wire form of a Resource.
type ResourceResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

func resourceToResponse(res domain.Resource) ResourceResponse {
	return ResourceResponse{
		ID:          res.ID,
		Name:        res.Name,
		Description: res.Description,
		CreatedAt:   res.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   res.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func (h *Handler) createResource(c *gin.Context) {
	var req domain.ResourceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bodyError(err))
		return
	}

	res, err := h.resources.CreateResource(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, resourceToResponse(*res))
}

func (h *Handler) listResources(c *gin.Context) {
	filter := domain.FilterFromQuery(c.Request.URL.Query())
	resources, err := h.resources.ListResources(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]ResourceResponse, len(resources))
	for i := range resources {
		resp[i] = resourceToResponse(resources[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) countResources(c *gin.Context) {
	filter := domain.FilterFromQuery(c.Request.URL.Query())
	n, err := h.resources.CountResources(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *Handler) findResource(c *gin.Context) {
	filter := domain.FilterFromQuery(c.Request.URL.Query())
	res, err := h.resources.FindResource(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	if res == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, resourceToResponse(*res))
}

func (h *Handler) getResource(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		notFound(c)
		return
	}

	res, err := h.resources.GetResource(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if res == nil {
		notFound(c)
		return
	}

	c.JSON(http.StatusOK, resourceToResponse(*res))
}

func (h *Handler) updateResource(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		notFound(c)
		return
	}

	var patch domain.ResourcePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.fail(c, bodyError(err))
		return
	}

	matched, updated, err := h.resources.UpdateResource(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	if matched == 0 || len(updated) == 0 {
		notFound(c)
		return
	}

	c.JSON(http.StatusOK, resourceToResponse(updated[0]))
}

func (h *Handler) deleteResource(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		notFound(c)
		return
	}

	deleted, err := h.resources.DeleteResource(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !deleted {
		notFound(c)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) health(c *gin.Context) {
	if err := h.resources.Ready(c.Request.Context()); err != nil {
		h.logger.WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail reports any error from the layers below as 400 with its message.
// Client mistakes are logged at info, store rejections at warn and anything
// else at error.
func (h *Handler) fail(c *gin.Context, err error) {
	msg := msgUnknownError
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	entry := h.logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"request_id": c.GetString(requestIDKey),
	}).WithError(err)
	switch {
	case domain.IsValidation(err):
		entry.Info("request rejected")
	case domain.IsConstraint(err):
		entry.Warn("request failed")
	default:
		entry.Error("request failed")
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"message": msgResourceNotFound})
}

// resourceID parses the :id segment. A malformed id cannot name a stored
// record, so callers treat !ok as not found.
func resourceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func bodyError(err error) error {
	if errors.Is(err, io.EOF) {
		return errors.New("request body is required")
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errors.New("request body too large")
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return &domain.ValidationError{Message: "request body must be a JSON object"}
		}
		return domain.InvalidValue(typeErr.Field)
	}
	return err
}
