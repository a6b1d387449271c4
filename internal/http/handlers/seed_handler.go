package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/influmarket-backend/internal/service"
)

// SeedHandler обрабатывает запросы генерации демо-данных.
// Маршрут подключается только в development окружении.
type SeedHandler struct {
	seed *service.SeedService
}

// NewSeedHandler создаёт хэндлер.
func NewSeedHandler(seed *service.SeedService) *SeedHandler {
	return &SeedHandler{seed: seed}
}

// Seed обрабатывает POST /seed.
func (h *SeedHandler) Seed(c *gin.Context) {
	var req struct {
		NumInfluencers int `json:"num_influencers"`
		NumBusinesses  int `json:"num_businesses"`
		NumOrders      int `json:"num_orders"`
	}
	_ = c.ShouldBindJSON(&req)

	if req.NumInfluencers < 1 {
		req.NumInfluencers = 20
	}
	if req.NumBusinesses < 1 {
		req.NumBusinesses = 10
	}
	if req.NumOrders < 1 {
		req.NumOrders = 40
	}
	if req.NumInfluencers > 500 {
		req.NumInfluencers = 500
	}
	if req.NumBusinesses > 200 {
		req.NumBusinesses = 200
	}
	if req.NumOrders > 2000 {
		req.NumOrders = 2000
	}

	if err := h.seed.SeedData(c.Request.Context(), req.NumInfluencers, req.NumBusinesses, req.NumOrders); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "не удалось сгенерировать демо-данные",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "демо-данные сгенерированы",
		"num_influencers": req.NumInfluencers,
		"num_businesses":  req.NumBusinesses,
		"num_orders":      req.NumOrders,
		"password":        "demo1234",
	})
}
