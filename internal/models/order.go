package models

import (
	"time"

	"github.com/google/uuid"
)

// Order описывает заказ на размещение рекламы у блогера.
type Order struct {
	ID           uuid.UUID `db:"id" json:"id"`
	BusinessID   uuid.UUID `db:"business_id" json:"business_id"`
	InfluencerID uuid.UUID `db:"influencer_id" json:"influencer_id"`
	ServiceType  string    `db:"service_type" json:"service_type"`
	Amount       float64   `db:"amount" json:"amount"`
	Briefing     string    `db:"briefing" json:"briefing"`
	DeliveryURL  *string   `db:"delivery_url" json:"delivery_url,omitempty"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// IsParticipant проверяет, участвует ли пользователь в заказе.
func (o *Order) IsParticipant(userID uuid.UUID) bool {
	return o.BusinessID == userID || o.InfluencerID == userID
}

// IsTerminal сообщает, находится ли заказ в терминальном статусе.
func (o *Order) IsTerminal() bool {
	return IsTerminalOrderStatus(o.Status)
}

// OrderStats — агрегированная статистика по заказам пользователя.
// Заработок считается суммой по завершённым заказам, а не хранимым полем.
type OrderStats struct {
	TotalOrders     int     `db:"total_orders" json:"total_orders"`
	ActiveOrders    int     `db:"active_orders" json:"active_orders"`
	CompletedOrders int     `db:"completed_orders" json:"completed_orders"`
	TotalEarned     float64 `db:"total_earned" json:"total_earned"`
	TotalSpent      float64 `db:"total_spent" json:"total_spent"`
}
