package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chama-connect/internal/models"
)

func (h *Handler) AdminListUsers(c *gin.Context) {
	limit, offset := parsePagination(c, 50, 0)
	users, total, err := h.store.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		h.writeError(c, "user list", err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"total": total,
	})
}

type createUserRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"omitempty,email"`
	Phone     string `json:"phone"`
	AvatarURL string `json:"avatarUrl"`
}

func (h *Handler) AdminCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	user, err := h.store.CreateUser(c.Request.Context(), models.User{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		h.writeError(c, "user create", err)
		return
	}
	h.logger.Info("member added", "user", user.ID, "by", h.actor(c))
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

type updateUserStatusRequest struct {
	Status models.UserStatus `json:"status" binding:"required"`
}

func (h *Handler) AdminUpdateUserStatus(c *gin.Context) {
	var req updateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	id := c.Param("id")
	if err := h.store.UpdateUserStatus(c.Request.Context(), id, req.Status); err != nil {
		h.writeError(c, "user update", err)
		return
	}
	user, err := h.store.GetUser(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "user read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
