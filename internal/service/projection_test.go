package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/pkg/apperror"
)

func TestProjectActor(t *testing.T) {
	avatar := "https://cdn.example.com/a.png"
	row := &models.ProfileRow{
		UserID:              uuid.New(),
		FullName:            "Maria Silva",
		Email:               "maria@example.com",
		Role:                models.RoleInfluencer,
		Status:              models.ActorStatusActive,
		OnboardingCompleted: true,
		Balance:             120.5,
		AvatarURL:           &avatar,
		InfluencerProfile:   json.RawMessage(`{"niche":"красота","followers":12000,"services":[{"type":"story","price":150}]}`),
		CreatedAt:           time.Now(),
	}

	actor, err := ProjectActor(row)
	if err != nil {
		t.Fatalf("проекция вернула ошибку: %v", err)
	}
	if actor.ID != row.UserID || actor.Email != row.Email {
		t.Fatalf("идентичность потерялась при проекции")
	}
	if actor.InfluencerProfile == nil {
		t.Fatalf("профиль инфлюенсера не распакован")
	}
	if offer, ok := actor.InfluencerProfile.OfferFor(models.ServiceTypeStory); !ok || offer.Price != 150 {
		t.Fatalf("прайс потерялся при проекции: %+v", actor.InfluencerProfile.Services)
	}
	if actor.CompanyProfile != nil {
		t.Fatalf("у инфлюенсера не должно быть профиля компании")
	}
}

func TestProjectActorNullProfiles(t *testing.T) {
	row := &models.ProfileRow{
		UserID:            uuid.New(),
		Role:              models.RoleBusiness,
		Status:            models.ActorStatusActive,
		CompanyProfile:    json.RawMessage(`null`),
		InfluencerProfile: nil,
	}

	actor, err := ProjectActor(row)
	if err != nil {
		t.Fatalf("проекция вернула ошибку: %v", err)
	}
	if actor.CompanyProfile != nil || actor.InfluencerProfile != nil {
		t.Fatalf("null в колонке должен давать nil в представлении")
	}
}

func TestProjectActorCorruptedColumn(t *testing.T) {
	row := &models.ProfileRow{
		UserID:         uuid.New(),
		Role:           models.RoleBusiness,
		CompanyProfile: json.RawMessage(`{broken`),
	}
	if _, err := ProjectActor(row); err == nil {
		t.Fatalf("повреждённый JSON должен возвращать ошибку")
	}
}

func TestTranslatePatch(t *testing.T) {
	fields, err := TranslatePatch(map[string]interface{}{
		"fullName":  "Loja Bella",
		"avatarUrl": nil,
		"companyProfile": map[string]interface{}{
			"companyName": "Loja Bella",
			"segment":     "мода",
		},
	})
	if err != nil {
		t.Fatalf("перевод патча вернул ошибку: %v", err)
	}
	if fields["full_name"] != "Loja Bella" {
		t.Fatalf("имя не переведено в колонку: %v", fields)
	}
	if value, ok := fields["avatar_url"]; !ok || value != nil {
		t.Fatalf("сброс аватара должен переводиться в NULL")
	}
	raw, ok := fields["company_profile"].([]byte)
	if !ok {
		t.Fatalf("профиль компании должен сериализоваться в JSON")
	}
	var company models.CompanyProfile
	if err := json.Unmarshal(raw, &company); err != nil || company.CompanyName != "Loja Bella" {
		t.Fatalf("профиль компании сериализован неверно: %s", raw)
	}
}

func TestTranslatePatchRejectsBadValues(t *testing.T) {
	cases := []map[string]interface{}{
		{"email": "new@example.com"},   // неизвестное поле
		{"role": models.RoleAdmin},     // защищённое поле
		{"fullName": ""},               // пустое имя
		{"fullName": 42},               // не строка
		{"onboardingCompleted": "yes"}, // не булево
		{"balance": float64(-10)},      // отрицательный баланс
	}
	for _, patch := range cases {
		if _, err := TranslatePatch(patch); !apperror.IsValidation(err) {
			t.Fatalf("патч %v должен отклоняться, получили %v", patch, err)
		}
	}
}

func TestFieldMappingRoundTrip(t *testing.T) {
	for _, m := range actorFieldMappings {
		column, ok := StoredColumn(m.Field)
		if !ok || column != m.Column {
			t.Fatalf("поле %s не переводится в колонку", m.Field)
		}
		field, ok := ActorField(m.Column)
		if !ok || field != m.Field {
			t.Fatalf("колонка %s не переводится в поле", m.Column)
		}
	}
	if _, ok := StoredColumn("email"); ok {
		t.Fatalf("email не должен быть обновляемым полем")
	}
}
