package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/influmarket-backend/internal/logger"
	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/influmarket-backend/internal/repository"
)

// ProfileRepository описывает зависимости ProfileService от слоя хранилища.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.ProfileRow, error)
	ListProfiles(ctx context.Context) ([]models.ProfileRow, error)
	ListProfilesByRole(ctx context.Context, role string) ([]models.ProfileRow, error)
	UpdateProfileFields(ctx context.Context, userID uuid.UUID, fields map[string]interface{}) (*models.ProfileRow, error)
	SetProfileStatus(ctx context.Context, userID uuid.UUID, status string) (*models.ProfileRow, error)
	DeleteAllSessions(ctx context.Context, userID uuid.UUID) error
}

// ProfileService отвечает за чтение и изменение профилей: перевод
// клиентских патчей в колонки БД, каталог инфлюенсеров и модерацию.
type ProfileService struct {
	repo ProfileRepository

	rosterMu      sync.RWMutex
	roster        []models.Actor
	rosterExpires time.Time
	rosterTTL     time.Duration
}

// NewProfileService создаёт сервис профилей.
func NewProfileService(repo ProfileRepository) *ProfileService {
	return &ProfileService{
		repo:      repo,
		rosterTTL: 30 * time.Second,
	}
}

// GetActor возвращает проекцию профиля по идентификатору.
func (s *ProfileService) GetActor(ctx context.Context, userID uuid.UUID) (*models.Actor, error) {
	row, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, apperror.ErrActorNotFound
		}
		return nil, fmt.Errorf("profile service: загрузка профиля: %w", err)
	}
	return ProjectActor(row)
}

// UpdateActor применяет частичное обновление профиля.
// Патч приходит в клиентских именах полей и переводится в колонки БД
// таблицей соответствий; неизвестные и защищённые поля отклоняются.
func (s *ProfileService) UpdateActor(ctx context.Context, actor *models.Actor, patch map[string]interface{}) (*models.Actor, error) {
	fields, err := TranslatePatch(patch)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "нет полей для обновления")
	}

	row, err := s.repo.UpdateProfileFields(ctx, actor.ID, fields)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, apperror.ErrActorNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeRemoteWrite, "не удалось сохранить профиль")
	}

	if row.Role == models.RoleInfluencer {
		s.invalidateRoster()
	}

	return ProjectActor(row)
}

// FetchAllUsers возвращает всех участников площадки.
// Доступно только администратору; для остальных ролей метод fail-closed:
// пустой список без ошибки, чтобы не раскрывать состав пользователей.
func (s *ProfileService) FetchAllUsers(ctx context.Context, actor *models.Actor) ([]models.Actor, error) {
	if !actor.IsAdmin() {
		return []models.Actor{}, nil
	}

	rows, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeRemoteRead, "не удалось загрузить пользователей")
	}
	return ProjectActors(rows)
}

// ListInfluencers возвращает каталог активных инфлюенсеров.
// Список кешируется на короткий срок и сбрасывается при изменениях профилей.
func (s *ProfileService) ListInfluencers(ctx context.Context) ([]models.Actor, error) {
	s.rosterMu.RLock()
	if s.roster != nil && time.Now().Before(s.rosterExpires) {
		cached := s.roster
		s.rosterMu.RUnlock()
		return cached, nil
	}
	s.rosterMu.RUnlock()

	rows, err := s.repo.ListProfilesByRole(ctx, models.RoleInfluencer)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeRemoteRead, "не удалось загрузить каталог инфлюенсеров")
	}
	actors, err := ProjectActors(rows)
	if err != nil {
		return nil, err
	}

	s.rosterMu.Lock()
	s.roster = actors
	s.rosterExpires = time.Now().Add(s.rosterTTL)
	s.rosterMu.Unlock()

	return actors, nil
}

// Suspend блокирует аккаунт и снимает все его сессии.
func (s *ProfileService) Suspend(ctx context.Context, admin *models.Actor, userID uuid.UUID) (*models.Actor, error) {
	return s.setStatus(ctx, admin, userID, models.ActorStatusSuspended)
}

// Reactivate снимает блокировку аккаунта.
func (s *ProfileService) Reactivate(ctx context.Context, admin *models.Actor, userID uuid.UUID) (*models.Actor, error) {
	return s.setStatus(ctx, admin, userID, models.ActorStatusActive)
}

func (s *ProfileService) setStatus(ctx context.Context, admin *models.Actor, userID uuid.UUID, status string) (*models.Actor, error) {
	if !admin.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if admin.ID == userID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя изменить статус собственного аккаунта")
	}

	row, err := s.repo.SetProfileStatus(ctx, userID, status)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, apperror.ErrActorNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeRemoteWrite, "не удалось изменить статус аккаунта")
	}

	if status == models.ActorStatusSuspended {
		if err := s.repo.DeleteAllSessions(ctx, userID); err != nil {
			logger.WithComponent("profiles").WithFields(map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			}).Warn("profile service: не удалось снять сессии заблокированного аккаунта")
		}
	}

	if row.Role == models.RoleInfluencer {
		s.invalidateRoster()
	}

	return ProjectActor(row)
}

func (s *ProfileService) invalidateRoster() {
	s.rosterMu.Lock()
	s.roster = nil
	s.rosterMu.Unlock()
}
