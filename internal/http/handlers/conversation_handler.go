package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/influmarket-backend/internal/chat"
	"github.com/ignatzorin/influmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/influmarket-backend/internal/logger"
	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/service"
)

// ConversationHandler предоставляет HTTP слой чатов заказов.
// Чтение идёт из локальной реплики синхронизатора, запись — через сервис
// заказов с подтверждением в реплику.
type ConversationHandler struct {
	orders   *service.OrderService
	profiles *service.ProfileService
	chats    *chat.Manager
}

// NewConversationHandler создаёт хэндлер.
func NewConversationHandler(orders *service.OrderService, profiles *service.ProfileService, chats *chat.Manager) *ConversationHandler {
	return &ConversationHandler{orders: orders, profiles: profiles, chats: chats}
}

func (h *ConversationHandler) currentActor(c *gin.Context) (*models.Actor, error) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		return nil, err
	}
	return h.profiles.GetActor(c.Request.Context(), userID)
}

// ListMessages обрабатывает GET /orders/:id/messages.
func (h *ConversationHandler) ListMessages(c *gin.Context) {
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

	// Проверка участия и fallback-чтение из хранилища.
	history, err := h.orders.ListOrderMessages(c.Request.Context(), actor, orderID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	// Предпочитаем реплику синхронизатора: она включает сообщения,
	// пришедшие по ленте после чтения истории.
	if chatSync, syncErr := h.chats.Get(c.Request.Context(), actor.ID); syncErr == nil {
		chatSync.TrackOrder(orderID)
		if replica := chatSync.MessagesForOrder(orderID); len(replica) >= len(history) {
			history = replica
		}
	} else {
		logger.WithComponent("chat").WithError(syncErr).
			Warn("chat: синхронизатор недоступен, ответ из хранилища")
	}

	c.JSON(http.StatusOK, gin.H{"messages": history})
}

// SendMessage обрабатывает POST /orders/:id/messages.
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
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

	msg, err := h.orders.SendMessage(c.Request.Context(), actor, orderID, req.Content)
	if err != nil {
		_ = c.Error(err)
		return
	}

	// Подтверждение отправки вливается в реплику сразу, не дожидаясь
	// события ленты: дубликат схлопнется дедупликацией по id.
	if chatSync, syncErr := h.chats.Get(c.Request.Context(), actor.ID); syncErr == nil {
		chatSync.TrackOrder(orderID)
		chatSync.Ingest(*msg)
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// ListAll обрабатывает GET /conversations — все сообщения пользователя.
func (h *ConversationHandler) ListAll(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	chatSync, err := h.chats.Get(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": chatSync.Messages()})
}
