package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/influmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/influmarket-backend/internal/service"
)

// AdminHandler предоставляет HTTP слой административных операций.
type AdminHandler struct {
	profiles *service.ProfileService
}

// NewAdminHandler создаёт хэндлер.
func NewAdminHandler(profiles *service.ProfileService) *AdminHandler {
	return &AdminHandler{profiles: profiles}
}

// ListUsers обрабатывает GET /admin/users.
// Для не-администратора сервис возвращает пустой список без ошибки.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	actor, err := h.profiles.GetActor(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	users, err := h.profiles.FetchAllUsers(c.Request.Context(), actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Suspend обрабатывает POST /admin/users/:id/suspend.
func (h *AdminHandler) Suspend(c *gin.Context) {
	h.setStatus(c, true)
}

// Reactivate обрабатывает POST /admin/users/:id/reactivate.
func (h *AdminHandler) Reactivate(c *gin.Context) {
	h.setStatus(c, false)
}

func (h *AdminHandler) setStatus(c *gin.Context, suspend bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	targetID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	admin, err := h.profiles.GetActor(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var updated interface{}
	if suspend {
		updated, err = h.profiles.Suspend(c.Request.Context(), admin, targetID)
	} else {
		updated, err = h.profiles.Reactivate(c.Request.Context(), admin, targetID)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": updated})
}
