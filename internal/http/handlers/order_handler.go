package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/influmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/service"
)

// OrderHandler предоставляет HTTP слой машины статусов заказов.
type OrderHandler struct {
	orders   *service.OrderService
	profiles *service.ProfileService
}

// NewOrderHandler создаёт хэндлер.
func NewOrderHandler(orders *service.OrderService, profiles *service.ProfileService) *OrderHandler {
	return &OrderHandler{orders: orders, profiles: profiles}
}

func (h *OrderHandler) currentActor(c *gin.Context) (*models.Actor, error) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		return nil, err
	}
	return h.profiles.GetActor(c.Request.Context(), userID)
}

// Create обрабатывает POST /orders.
func (h *OrderHandler) Create(c *gin.Context) {
	var req struct {
		InfluencerID uuid.UUID `json:"influencer_id" binding:"required"`
		ServiceType  string    `json:"service_type" binding:"required"`
		Briefing     string    `json:"briefing" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, err := h.currentActor(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), actor, service.CreateOrderInput{
		InfluencerID: req.InfluencerID,
		ServiceType:  req.ServiceType,
		Briefing:     req.Briefing,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// List обрабатывает GET /orders — заказы текущего пользователя.
func (h *OrderHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	orders, err := h.orders.ListMyOrders(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// Get обрабатывает GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, err := h.currentActor(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), actor, orderID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateStatus обрабатывает PATCH /orders/:id/status.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Status      string `json:"status" binding:"required"`
		DeliveryURL string `json:"delivery_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, err := h.currentActor(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), actor, service.UpdateStatusInput{
		OrderID:     orderID,
		ToStatus:    req.Status,
		DeliveryURL: req.DeliveryURL,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}
