package account

import (
	"errors"
	"log/slog"
	"net/http"

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
	router.POST("/register", h.Register)
	router.GET("/users/:login", h.GetUser)
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || h.validate.Struct(&req) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	h.logger.InfoContext(c.Request.Context(), "registering user", "login", req.Login)
	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.metrics.RecordUserRegistered(c.Request.Context())

	c.JSON(http.StatusCreated, user)
}

func (h *Handler) GetUser(c *gin.Context) {
	login := c.Param("login")

	h.logger.InfoContext(c.Request.Context(), "fetching user", "login", login)
	user, err := h.service.GetByLogin(c.Request.Context(), login)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) handleServiceError(c *gin.Context, err error) {
	if errors.Is(err, ErrUserNotFound) {
		h.logger.Info("user not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if errors.Is(err, ErrLoginExists) || errors.Is(err, ErrCardNumberExists) {
		h.logger.Info("registration conflict")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("internal error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
