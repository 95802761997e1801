package bus

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/crsacramento/BusTicketsServer/internal/metrics"
	"github.com/crsacramento/BusTicketsServer/internal/ticket"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.POST("/buslist", h.ListValidated)
}

// ListValidatedRequest asks for a bus's recent validations. WindowSeconds is
// optional; zero means the service default.
type ListValidatedRequest struct {
	BusMacAddress string `json:"mac_address" validate:"required"`
	WindowSeconds int    `json:"window_seconds" validate:"gte=0"`
}

func (h *Handler) ListValidated(c *gin.Context) {
	var req ListValidatedRequest
	if err := c.ShouldBindJSON(&req); err != nil || h.validate.Struct(&req) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	h.logger.InfoContext(c.Request.Context(), "listing bus validations",
		"bus", req.BusMacAddress,
		"window_seconds", req.WindowSeconds,
	)

	tickets, err := h.service.ListValidated(
		c.Request.Context(),
		req.BusMacAddress,
		time.Duration(req.WindowSeconds)*time.Second,
	)
	if err != nil {
		if errors.Is(err, ticket.ErrInvalidBusAddress) {
			h.logger.Info("invalid bus address")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("internal error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.metrics.RecordBusListQuery(c.Request.Context())

	c.JSON(http.StatusOK, tickets)
}
