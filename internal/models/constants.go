package models

// Role константы ролей участников площадки
const (
	RoleBusiness   = "business"
	RoleInfluencer = "influencer"
	RoleAdmin      = "admin"
)

// ActorStatus константы статусов аккаунта
const (
	ActorStatusActive    = "active"
	ActorStatusSuspended = "suspended"
)

// OrderStatus константы статусов заказов
const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusDelivered  = "delivered"
	OrderStatusCompleted  = "completed"
	OrderStatusRejected   = "rejected"
	OrderStatusCancelled  = "cancelled"
)

// ServiceType константы типов размещений
const (
	ServiceTypeStory = "story"
	ServiceTypeReels = "reels"
	ServiceTypeFeed  = "feed"
)

// AuthorType константы авторов сообщений
const (
	AuthorTypeBusiness   = "business"
	AuthorTypeInfluencer = "influencer"
	AuthorTypeSystem     = "system"
)

// ValidRoles список валидных ролей
var ValidRoles = map[string]struct{}{
	RoleBusiness:   {},
	RoleInfluencer: {},
	RoleAdmin:      {},
}

// ValidOrderStatuses список валидных статусов заказов
var ValidOrderStatuses = map[string]struct{}{
	OrderStatusPending:    {},
	OrderStatusInProgress: {},
	OrderStatusDelivered:  {},
	OrderStatusCompleted:  {},
	OrderStatusRejected:   {},
	OrderStatusCancelled:  {},
}

// ValidServiceTypes список валидных типов размещений
var ValidServiceTypes = map[string]struct{}{
	ServiceTypeStory: {},
	ServiceTypeReels: {},
	ServiceTypeFeed:  {},
}

// orderTransitions описывает допустимые переходы статусов заказа.
// Терминальные статусы (completed, rejected, cancelled) переходов не имеют.
var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusInProgress, OrderStatusRejected, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:  {},
	OrderStatusRejected:   {},
	OrderStatusCancelled:  {},
}

// CanTransitionOrder проверяет, достижим ли новый статус из текущего.
func CanTransitionOrder(from, to string) bool {
	allowed, ok := orderTransitions[from]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus сообщает, является ли статус терминальным.
func IsTerminalOrderStatus(status string) bool {
	allowed, ok := orderTransitions[status]
	return ok && len(allowed) == 0
}
