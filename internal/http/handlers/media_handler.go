package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/influmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/influmarket-backend/internal/service"
	"github.com/ignatzorin/influmarket-backend/internal/storage"
)

// MediaHandler предоставляет HTTP слой загрузки медиафайлов.
type MediaHandler struct {
	media    *storage.MediaStorage
	profiles *service.ProfileService
}

// NewMediaHandler создаёт хэндлер.
func NewMediaHandler(media *storage.MediaStorage, profiles *service.ProfileService) *MediaHandler {
	return &MediaHandler{media: media, profiles: profiles}
}

// UploadAvatar обрабатывает POST /media/avatar.
// Сохраняет изображение и записывает его URL в профиль.
func (h *MediaHandler) UploadAvatar(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "файл обязателен"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "не удалось открыть файл"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "не удалось прочитать файл"})
		return
	}

	url, err := h.media.SaveAvatar(c.Request.Context(), userID, data)
	if err != nil {
		_ = c.Error(err)
		return
	}

	actor, err := h.profiles.GetActor(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	updated, err := h.profiles.UpdateActor(c.Request.Context(), actor, map[string]interface{}{
		"avatarUrl": url,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"avatar_url": url,
		"user":       updated,
	})
}
