package ticket

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/crsacramento/BusTicketsServer/internal/account"
	"github.com/crsacramento/BusTicketsServer/internal/metrics"

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
	router.POST("/buy", h.Purchase)
	router.POST("/validate", h.Validate)
	router.GET("/tickets/:login", h.ListUnvalidated)
}

func (h *Handler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil || h.validate.Struct(&req) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	counts := req.Counts()
	h.logger.InfoContext(c.Request.Context(), "purchasing tickets",
		"login", req.Login,
		"tier15", counts.Tier15,
		"tier30", counts.Tier30,
		"tier60", counts.Tier60,
	)

	result, err := h.service.Purchase(c.Request.Context(), req.Login, counts)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	for _, tier := range tierOrder {
		if n := counts.forTier(tier); n > 0 {
			h.metrics.RecordTicketsPurchased(c.Request.Context(), n, tier)
		}
	}
	if result.Extra {
		h.metrics.RecordBonusTicketIssued(c.Request.Context(), bonusTier(counts))
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil || h.validate.Struct(&req) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	h.logger.InfoContext(c.Request.Context(), "validating ticket",
		"login", req.Login,
		"ticket_id", req.TicketID,
		"bus", req.BusMacAddress,
	)

	ticket, err := h.service.Validate(c.Request.Context(), req.Login, req.TicketID, req.BusMacAddress)
	if err != nil {
		h.recordRejection(c, err)
		h.handleServiceError(c, err)
		return
	}

	h.metrics.RecordTicketValidated(c.Request.Context())

	c.JSON(http.StatusOK, ticket)
}

func (h *Handler) ListUnvalidated(c *gin.Context) {
	login := c.Param("login")

	h.logger.InfoContext(c.Request.Context(), "listing unvalidated tickets", "login", login)
	tickets, err := h.service.ListUnvalidated(c.Request.Context(), login)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tickets)
}

func (h *Handler) recordRejection(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAlreadyValidated):
		h.metrics.RecordValidationRejected(c.Request.Context(), "already_validated")
	case errors.Is(err, ErrInvalidBusAddress):
		h.metrics.RecordValidationRejected(c.Request.Context(), "invalid_bus_address")
	case errors.Is(err, ErrTicketNotFound):
		h.metrics.RecordValidationRejected(c.Request.Context(), "ticket_not_found")
	}
}

func (h *Handler) handleServiceError(c *gin.Context, err error) {
	if errors.Is(err, account.ErrUserNotFound) {
		h.logger.Info("user not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if errors.Is(err, ErrTicketNotFound) {
		h.logger.Info("ticket not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
		return
	}
	if errors.Is(err, ErrAlreadyValidated) {
		h.logger.Info("ticket already validated")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrNoTicketsRequested) || errors.Is(err, ErrInvalidBusAddress) {
		h.logger.Info("invalid ticket request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("internal error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
