package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message описывает сообщение в чате заказа.
// Сообщения неизменяемы после создания: редактирования и удаления нет.
type Message struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	OrderID    uuid.UUID  `db:"order_id" json:"order_id"`
	AuthorID   *uuid.UUID `db:"author_id" json:"author_id,omitempty"`
	AuthorType string     `db:"author_type" json:"author_type"`
	Content    string     `db:"content" json:"content"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// IsSystem сообщает, создано ли сообщение платформой.
func (m *Message) IsSystem() bool {
	return m.AuthorType == AuthorTypeSystem
}

// Notification описывает событие, отправленное пользователю.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
