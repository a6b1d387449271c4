package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/influmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/service"
)

// ProfileHandler предоставляет HTTP слой для профилей и каталога.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler создаёт хэндлер.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// currentActor загружает проекцию профиля текущего пользователя.
func (h *ProfileHandler) currentActor(c *gin.Context) (*models.Actor, error) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		return nil, err
	}
	return h.profiles.GetActor(c.Request.Context(), userID)
}

// Update обрабатывает PATCH /profile.
// Тело запроса — частичный патч в клиентских именах полей.
func (h *ProfileHandler) Update(c *gin.Context) {
	actor, err := h.currentActor(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.profiles.UpdateActor(c.Request.Context(), actor, patch)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": updated})
}

// ListInfluencers обрабатывает GET /influencers — каталог блогеров.
func (h *ProfileHandler) ListInfluencers(c *gin.Context) {
	influencers, err := h.profiles.ListInfluencers(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"influencers": influencers})
}

// GetInfluencer обрабатывает GET /influencers/:id.
func (h *ProfileHandler) GetInfluencer(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, err := h.profiles.GetActor(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if actor.Role != models.RoleInfluencer || actor.IsSuspended() {
		c.JSON(http.StatusNotFound, gin.H{"error": "инфлюенсер не найден"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"influencer": actor})
}

// GetBusiness обрабатывает GET /businesses/:id — профиль заказчика
// для второй стороны сделки.
func (h *ProfileHandler) GetBusiness(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, err := h.profiles.GetActor(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if actor.Role != models.RoleBusiness || actor.IsSuspended() {
		c.JSON(http.StatusNotFound, gin.H{"error": "бизнес не найден"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"business": actor})
}
