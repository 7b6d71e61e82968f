package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"

	"chama-connect/internal/auth"
	"chama-connect/internal/config"
	"chama-connect/internal/database"
	"chama-connect/internal/middleware"
	"chama-connect/internal/services/raffle"
)

type Handler struct {
	cfg    *config.Config
	store  *database.Store
	raffle *raffle.Service
	jwt    *auth.Manager
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(cfg *config.Config, store *database.Store, raffleSvc *raffle.Service, jwt *auth.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		store:  store,
		raffle: raffleSvc,
		jwt:    jwt,
		logger: logger,
		now:    time.Now,
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler, jwt *auth.Manager, adminIPs []string) {
	r.GET("/api/health", h.Health)

	api := r.Group("/api/raffle")
	api.Use(middleware.JWT(jwt), middleware.RequireRole(auth.RoleMember, auth.RoleAdmin))
	api.GET("/settings", h.GetSettings)
	api.GET("/winners", h.GetWinners)
	api.GET("/winners/current", h.GetCurrentWinners)

	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminIPWhitelist(adminIPs))
	admin.POST("/login", h.AdminLogin)

	adminProtected := admin.Group("/")
	adminProtected.Use(middleware.JWT(jwt), middleware.RequireRole(auth.RoleAdmin))
	adminProtected.PUT("/raffle/settings", h.UpdateSettings)
	adminProtected.POST("/raffle/settings/schedule", h.ScheduleSettings)
	adminProtected.GET("/raffle/cycles/current", h.CurrentCycle)
	adminProtected.POST("/raffle/cycles/:id/eligible", h.AddEligibleUsers)
	adminProtected.POST("/raffle/draws", h.DrawWinners)
	adminProtected.PUT("/raffle/winners/:id/payment", h.UpdateWinnerPayment)
	adminProtected.GET("/users", h.AdminListUsers)
	adminProtected.POST("/users", h.AdminCreateUser)
	adminProtected.PUT("/users/:id/status", h.AdminUpdateUserStatus)
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "timestamp": time.Now().UTC()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
}

type adminLoginRequest struct {
	Password string `json:"password" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if req.Password != h.cfg.AdminPassword {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if ok := totp.Validate(req.Code, h.cfg.AdminTOTPSecret); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp"})
		return
	}
	token, err := h.jwt.IssueToken("admin", "admin", auth.RoleAdmin, 4*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// asOf is the current instant in the association's timezone; the cycle
// month follows the local calendar.
func (h *Handler) asOf() time.Time {
	loc := h.cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return h.now().In(loc)
}

func (h *Handler) actor(c *gin.Context) string {
	if claims := middleware.ClaimsFromContext(c); claims != nil && claims.Name != "" {
		return claims.Name
	}
	return "admin"
}

// writeError maps engine and store errors onto HTTP responses.
func (h *Handler) writeError(c *gin.Context, op string, err error) {
	var verr *raffle.ValidationError
	var pool *raffle.InsufficientPoolError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.As(err, &pool):
		c.JSON(http.StatusConflict, gin.H{"error": pool.Error(), "required": pool.Required, "available": pool.Available})
	case errors.Is(err, raffle.ErrRaffleDisabled),
		errors.Is(err, raffle.ErrCycleCompleted),
		errors.Is(err, raffle.ErrCycleChanged):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, raffle.ErrCycleNotFound),
		errors.Is(err, raffle.ErrWinnerNotFound),
		errors.Is(err, database.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error(op+" failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func parsePagination(c *gin.Context, defaultLimit, defaultOffset int) (int, int) {
	limit := defaultLimit
	offset := defaultOffset
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
