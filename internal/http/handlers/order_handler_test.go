package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOrderHandler_List_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewOrderHandler(nil, nil)
	r.GET("/orders", handler.List)

	req, _ := http.NewRequest("GET", "/orders", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrderHandler_Get_InvalidOrderID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewOrderHandler(nil, nil)
	r.GET("/orders/:id", handler.Get)

	req, _ := http.NewRequest("GET", "/orders/invalid-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_UpdateStatus_InvalidOrderID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewOrderHandler(nil, nil)
	r.PATCH("/orders/:id/status", handler.UpdateStatus)

	body := strings.NewReader(`{"status":"in_progress"}`)
	req, _ := http.NewRequest("PATCH", "/orders/invalid-uuid/status", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_UpdateStatus_MissingStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewOrderHandler(nil, nil)
	r.PATCH("/orders/:id/status", handler.UpdateStatus)

	orderID := uuid.New()
	req, _ := http.NewRequest("PATCH", "/orders/"+orderID.String()+"/status", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_Create_MalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewOrderHandler(nil, nil)
	r.POST("/orders", handler.Create)

	req, _ := http.NewRequest("POST", "/orders", strings.NewReader(`{"influencer_id":"not-a-uuid"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
