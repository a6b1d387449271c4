package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User описывает учётную запись в сервисе идентификации.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Session представляет сохранённую сессию пользователя.
type Session struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	RefreshToken string    `db:"refresh_token" json:"refresh_token"`
	UserAgent    *string   `db:"user_agent" json:"user_agent,omitempty"`
	IPAddress    *string   `db:"ip_address" json:"ip_address,omitempty"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ProfileRow — запись профиля в том виде, в котором она хранится в БД.
// Имена колонок (snake_case) отличаются от представления Actor,
// перевод делается таблицей соответствий в сервисном слое.
type ProfileRow struct {
	UserID              uuid.UUID       `db:"user_id"`
	FullName            string          `db:"full_name"`
	Email               string          `db:"email"`
	Role                string          `db:"role"`
	Status              string          `db:"status"`
	OnboardingCompleted bool            `db:"onboarding_completed"`
	Balance             float64         `db:"balance"`
	AvatarURL           *string         `db:"avatar_url"`
	CompanyProfile      json.RawMessage `db:"company_profile"`
	InfluencerProfile   json.RawMessage `db:"influencer_profile"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

// Actor — унифицированное представление участника площадки,
// с которым работают сервисы и которое отдаётся клиентам.
type Actor struct {
	ID                  uuid.UUID          `json:"id"`
	FullName            string             `json:"fullName"`
	Email               string             `json:"email"`
	Role                string             `json:"role"`
	Status              string             `json:"status"`
	OnboardingCompleted bool               `json:"onboardingCompleted"`
	Balance             float64            `json:"balance"`
	AvatarURL           *string            `json:"avatarUrl,omitempty"`
	CompanyProfile      *CompanyProfile    `json:"companyProfile,omitempty"`
	InfluencerProfile   *InfluencerProfile `json:"influencerProfile,omitempty"`
	CreatedAt           time.Time          `json:"createdAt"`
}

// IsAdmin сообщает, является ли участник администратором.
func (a *Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsSuspended сообщает, заблокирован ли аккаунт.
func (a *Actor) IsSuspended() bool {
	return a.Status == ActorStatusSuspended
}

// CompanyProfile — расширение профиля для бизнеса.
type CompanyProfile struct {
	CompanyName string `json:"companyName"`
	Segment     string `json:"segment,omitempty"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`
}

// InfluencerProfile — расширение профиля для блогера: метрики,
// прайс на размещения, расписание, аудитория и платёжные данные.
type InfluencerProfile struct {
	Niche          string         `json:"niche,omitempty"`
	Bio            string         `json:"bio,omitempty"`
	Followers      int            `json:"followers"`
	EngagementRate float64        `json:"engagementRate,omitempty"`
	InstagramURL   string         `json:"instagramUrl,omitempty"`
	Services       []ServiceOffer `json:"services,omitempty"`
	Schedule       *Schedule      `json:"schedule,omitempty"`
	Audience       *Audience      `json:"audience,omitempty"`
	PaymentInfo    *PaymentInfo   `json:"paymentInfo,omitempty"`
}

// ServiceOffer — прайс блогера на конкретный тип размещения.
type ServiceOffer struct {
	Type  string  `json:"type"`
	Price float64 `json:"price"`
}

// OfferFor возвращает позицию прайса для указанного типа размещения.
func (p *InfluencerProfile) OfferFor(serviceType string) (ServiceOffer, bool) {
	for _, offer := range p.Services {
		if offer.Type == serviceType {
			return offer, true
		}
	}
	return ServiceOffer{}, false
}

// Schedule — рабочие дни и слоты блогера.
type Schedule struct {
	Days  []string `json:"days,omitempty"`
	Hours string   `json:"hours,omitempty"`
}

// Audience — данные об аудитории блогера.
type Audience struct {
	AgeRange    string  `json:"ageRange,omitempty"`
	FemaleShare float64 `json:"femaleShare,omitempty"`
	TopCity     string  `json:"topCity,omitempty"`
}

// PaymentInfo — платёжные реквизиты блогера.
type PaymentInfo struct {
	PixKey   string `json:"pixKey,omitempty"`
	BankName string `json:"bankName,omitempty"`
}
