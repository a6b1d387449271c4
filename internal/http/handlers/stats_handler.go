package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/influmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/influmarket-backend/internal/service"
)

// StatsHandler отдаёт производные показатели по заказам.
type StatsHandler struct {
	orders *service.OrderService
}

// NewStatsHandler создаёт хэндлер.
func NewStatsHandler(orders *service.OrderService) *StatsHandler {
	return &StatsHandler{orders: orders}
}

// Get обрабатывает GET /stats.
// Заработок и траты считаются из завершённых заказов на каждый запрос.
func (h *StatsHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.orders.GetStats(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
