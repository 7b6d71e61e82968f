package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chama-connect/internal/database"
	"chama-connect/internal/models"
)

func (h *Handler) GetSettings(c *gin.Context) {
	st, err := h.raffle.GetSettings(c.Request.Context())
	if err != nil {
		h.writeError(c, "settings read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": st})
}

type updateSettingsRequest struct {
	WinnersPerPeriod int   `json:"winnersPerPeriod"`
	Active           *bool `json:"active"`
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	} else if current, err := h.raffle.GetSettings(c.Request.Context()); err == nil {
		active = current.Active
	}
	st, err := h.raffle.UpdateSettings(c.Request.Context(), req.WinnersPerPeriod, active, h.actor(c))
	if err != nil {
		h.writeError(c, "settings update", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": st})
}

type scheduleSettingsRequest struct {
	WinnersPerPeriod int       `json:"winnersPerPeriod"`
	Active           *bool     `json:"active"`
	ApplyAt          time.Time `json:"applyAt"`
	DelayMinutes     int       `json:"delayMinutes"`
	Message          string    `json:"message"`
}

func (h *Handler) ScheduleSettings(c *gin.Context) {
	var req scheduleSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WinnersPerPeriod < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "winnersPerPeriod must be at least 1"})
		return
	}
	var applyAt time.Time
	if !req.ApplyAt.IsZero() {
		applyAt = req.ApplyAt
	} else if req.DelayMinutes > 0 {
		applyAt = h.now().Add(time.Duration(req.DelayMinutes) * time.Minute)
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "applyAt or delayMinutes is required"})
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	schedule := database.SettingsSchedule{
		WinnersPerPeriod: req.WinnersPerPeriod,
		Active:           active,
		ApplyAt:          applyAt.UTC(),
		Author:           h.actor(c),
		Message:          req.Message,
		CreatedAt:        h.now().UTC(),
	}
	if err := h.store.SaveSettingsSchedule(c.Request.Context(), schedule); err != nil {
		h.writeError(c, "schedule save", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduled": schedule})
}

func (h *Handler) CurrentCycle(c *gin.Context) {
	cycle, err := h.raffle.GetCurrentCycle(c.Request.Context(), h.asOf())
	if err != nil {
		h.writeError(c, "cycle read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycle": cycle})
}

func (h *Handler) DrawWinners(c *gin.Context) {
	result, err := h.raffle.DrawWinners(c.Request.Context(), h.asOf())
	if err != nil {
		h.writeError(c, "draw", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type addEligibleRequest struct {
	UserIDs []string `json:"userIds" binding:"required"`
}

func (h *Handler) AddEligibleUsers(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req addEligibleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	added, err := h.raffle.AddEligibleUsers(c.Request.Context(), id, req.UserIDs)
	if err != nil {
		h.writeError(c, "add eligible users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// GetWinners takes year and a 0-indexed month; both default to the
// current period.
func (h *Handler) GetWinners(c *gin.Context) {
	now := h.asOf()
	year, month := now.Year(), int(now.Month())-1
	if v := c.Query("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return
		}
		year = parsed
	}
	if v := c.Query("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
			return
		}
		month = parsed
	}
	report, err := h.raffle.GetWinners(c.Request.Context(), year, month)
	if err != nil {
		h.writeError(c, "winners read", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) GetCurrentWinners(c *gin.Context) {
	report, err := h.raffle.GetCurrentWinners(c.Request.Context(), h.asOf())
	if err != nil {
		h.writeError(c, "winners read", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type updatePaymentRequest struct {
	Status models.PaymentStatus `json:"status" binding:"required"`
}

func (h *Handler) UpdateWinnerPayment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := h.raffle.UpdateWinnerPaymentStatus(c.Request.Context(), id, req.Status); err != nil {
		h.writeError(c, "payment update", err)
		return
	}
	winner, err := h.store.GetWinner(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "winner read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"winner": winner})
}
