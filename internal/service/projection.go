package service

import (
	"encoding/json"
	"fmt"

	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/pkg/apperror"
)

// fieldMapping связывает имя поля представления Actor с колонкой profiles.
// Все переводы имён в обе стороны идут только через эту таблицу,
// чтобы соответствие было проверяемым в одном месте.
type fieldMapping struct {
	Field  string
	Column string
}

var actorFieldMappings = []fieldMapping{
	{Field: "fullName", Column: "full_name"},
	{Field: "avatarUrl", Column: "avatar_url"},
	{Field: "onboardingCompleted", Column: "onboarding_completed"},
	{Field: "balance", Column: "balance"},
	{Field: "companyProfile", Column: "company_profile"},
	{Field: "influencerProfile", Column: "influencer_profile"},
}

// StoredColumn возвращает колонку хранилища для поля Actor.
func StoredColumn(field string) (string, bool) {
	for _, m := range actorFieldMappings {
		if m.Field == field {
			return m.Column, true
		}
	}
	return "", false
}

// ActorField возвращает поле Actor для колонки хранилища.
func ActorField(column string) (string, bool) {
	for _, m := range actorFieldMappings {
		if m.Column == column {
			return m.Field, true
		}
	}
	return "", false
}

// ProjectActor переводит строку profiles в унифицированное представление Actor.
func ProjectActor(row *models.ProfileRow) (*models.Actor, error) {
	actor := &models.Actor{
		ID:                  row.UserID,
		FullName:            row.FullName,
		Email:               row.Email,
		Role:                row.Role,
		Status:              row.Status,
		OnboardingCompleted: row.OnboardingCompleted,
		Balance:             row.Balance,
		AvatarURL:           row.AvatarURL,
		CreatedAt:           row.CreatedAt,
	}

	if len(row.CompanyProfile) > 0 && string(row.CompanyProfile) != "null" {
		var company models.CompanyProfile
		if err := json.Unmarshal(row.CompanyProfile, &company); err != nil {
			return nil, fmt.Errorf("projection: company_profile повреждён: %w", err)
		}
		actor.CompanyProfile = &company
	}

	if len(row.InfluencerProfile) > 0 && string(row.InfluencerProfile) != "null" {
		var influencer models.InfluencerProfile
		if err := json.Unmarshal(row.InfluencerProfile, &influencer); err != nil {
			return nil, fmt.Errorf("projection: influencer_profile повреждён: %w", err)
		}
		actor.InfluencerProfile = &influencer
	}

	return actor, nil
}

// ProjectActors переводит срез строк profiles в представления Actor.
func ProjectActors(rows []models.ProfileRow) ([]models.Actor, error) {
	actors := make([]models.Actor, 0, len(rows))
	for i := range rows {
		actor, err := ProjectActor(&rows[i])
		if err != nil {
			return nil, err
		}
		actors = append(actors, *actor)
	}
	return actors, nil
}

// TranslatePatch переводит частичное обновление с именами полей Actor
// в карту колонка -> значение для хранилища. Неизвестные поля отклоняются.
func TranslatePatch(patch map[string]interface{}) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(patch))

	for field, value := range patch {
		column, ok := StoredColumn(field)
		if !ok {
			return nil, apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("поле %s недоступно для обновления", field))
		}

		switch column {
		case "full_name":
			name, ok := value.(string)
			if !ok || name == "" {
				return nil, apperror.New(apperror.ErrCodeValidation, "поле fullName должно быть непустой строкой")
			}
			fields[column] = name
		case "avatar_url":
			if value == nil {
				fields[column] = nil
				break
			}
			raw, ok := value.(string)
			if !ok {
				return nil, apperror.New(apperror.ErrCodeValidation, "поле avatarUrl должно быть строкой")
			}
			fields[column] = raw
		case "onboarding_completed":
			flag, ok := value.(bool)
			if !ok {
				return nil, apperror.New(apperror.ErrCodeValidation, "поле onboardingCompleted должно быть булевым")
			}
			fields[column] = flag
		case "balance":
			amount, ok := value.(float64)
			if !ok || amount < 0 {
				return nil, apperror.New(apperror.ErrCodeValidation, "поле balance должно быть неотрицательным числом")
			}
			fields[column] = amount
		case "company_profile", "influencer_profile":
			if value == nil {
				fields[column] = nil
				break
			}
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, apperror.Wrap(err, apperror.ErrCodeValidation,
					fmt.Sprintf("поле %s не сериализуется", field))
			}
			fields[column] = raw
		}
	}

	return fields, nil
}
