package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/ignatzorin/influmarket-backend/internal/logger"
	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/influmarket-backend/internal/repository"
	"github.com/ignatzorin/influmarket-backend/internal/validation"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateProfile(ctx context.Context, row *models.ProfileRow) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.ProfileRow, error)
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error)
	DeleteSession(ctx context.Context, refreshToken string) error
	DeleteAllSessions(ctx context.Context, userID uuid.UUID) error
}

// AuthService инкапсулирует регистрацию, вход и жизненный цикл сессии.
// Единая операция Login различает регистрацию и вход по наличию fullName.
type AuthService struct {
	repo           AuthRepository
	tokenManager   *TokenManager
	seedAdminEmail string
}

// LoginInput содержит данные единой операции входа/регистрации.
type LoginInput struct {
	Role     string
	Email    string
	Password string
	// FullName не пустой означает попытку регистрации.
	FullName string
}

// AuthResult возвращает итог регистрации или авторизации.
type AuthResult struct {
	Actor     *models.Actor
	TokenPair *TokenPair
}

// NewAuthService создаёт сервис аутентификации.
// seedAdminEmail — email, который всегда получает роль admin (см. конфигурацию).
func NewAuthService(repo AuthRepository, tokenManager *TokenManager, seedAdminEmail string) *AuthService {
	return &AuthService{
		repo:           repo,
		tokenManager:   tokenManager,
		seedAdminEmail: strings.ToLower(seedAdminEmail),
	}
}

// Login выполняет вход либо регистрацию (если передан fullName).
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta map[string]string) (*AuthResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	if in.FullName != "" {
		return s.register(ctx, in, meta)
	}
	return s.signIn(ctx, in, meta)
}

// register создаёт учётную запись и профиль с запрошенной ролью.
func (s *AuthService) register(ctx context.Context, in LoginInput, meta map[string]string) (*AuthResult, error) {
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateFullName(in.FullName); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.Role != models.RoleBusiness && in.Role != models.RoleInfluencer {
		return nil, apperror.New(apperror.ErrCodeValidation, "роль должна быть business или influencer")
	}

	if _, err := s.repo.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "email уже зарегистрирован")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("auth service: проверка email: %w", err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(in.Email),
		PasswordHash: string(passHash),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	row := &models.ProfileRow{
		UserID:              user.ID,
		FullName:            in.FullName,
		Email:               user.Email,
		Role:                s.resolveRole(user.Email, in.Role),
		Status:              models.ActorStatusActive,
		OnboardingCompleted: false,
		Balance:             0,
	}
	if err := s.repo.CreateProfile(ctx, row); err != nil {
		return nil, err
	}

	return s.issueSession(ctx, row, meta)
}

// signIn проверяет учётные данные и возвращает проекцию профиля с токенами.
func (s *AuthService) signIn(ctx context.Context, in LoginInput, meta map[string]string) (*AuthResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Различимая ошибка: вызывающая сторона предлагает регистрацию.
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("auth service: поиск пользователя: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	row, err := s.repo.GetProfile(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrProfileNotFound) {
			return nil, fmt.Errorf("auth service: загрузка профиля: %w", err)
		}

		// Учётная запись старше строки профиля: чиним дефолтным профилем.
		// Переопределение seed-admin применяется и здесь.
		fallbackRole := in.Role
		if _, ok := models.ValidRoles[fallbackRole]; !ok || fallbackRole == models.RoleAdmin {
			fallbackRole = models.RoleBusiness
		}
		row = &models.ProfileRow{
			UserID:              user.ID,
			FullName:            deriveFullName(user.Email),
			Email:               user.Email,
			Role:                s.resolveRole(user.Email, fallbackRole),
			Status:              models.ActorStatusActive,
			OnboardingCompleted: false,
			Balance:             0,
		}
		if err := s.repo.CreateProfile(ctx, row); err != nil {
			return nil, err
		}
	}

	if row.Status == models.ActorStatusSuspended {
		return nil, s.teardownSuspended(ctx, user.ID)
	}

	return s.issueSession(ctx, row, meta)
}

// EstablishSession восстанавливает сессию: возвращает актуальную проекцию
// профиля и принудительно завершает сессию заблокированного аккаунта.
func (s *AuthService) EstablishSession(ctx context.Context, userID uuid.UUID) (*models.Actor, error) {
	row, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, apperror.ErrActorNotFound
		}
		return nil, fmt.Errorf("auth service: загрузка профиля: %w", err)
	}

	if row.Status == models.ActorStatusSuspended {
		return nil, s.teardownSuspended(ctx, userID)
	}

	return ProjectActor(row)
}

// Refresh выпускает новую пару токенов по refresh токену.
func (s *AuthService) Refresh(ctx context.Context, oldToken string, meta map[string]string) (*TokenPair, error) {
	claims, err := s.tokenManager.ParseRefresh(oldToken)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "refresh токен невалиден")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "некорректный subject")
	}

	// Токен должен соответствовать живой сессии: после logout или
	// блокировки строки сессии нет, и обновление отклоняется.
	if _, err := s.repo.GetSessionByToken(ctx, oldToken); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, apperror.New(apperror.ErrCodeUnauthorized, "сессия завершена")
		}
		return nil, fmt.Errorf("auth service: поиск сессии: %w", err)
	}

	row, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth service: загрузка профиля: %w", err)
	}
	if row.Status == models.ActorStatusSuspended {
		return nil, s.teardownSuspended(ctx, userID)
	}

	tokenPair, _, refreshExp, err := s.tokenManager.GeneratePair(userID, row.Role)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteSession(ctx, oldToken); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, err
	}

	session := &models.Session{
		UserID:       userID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}
	applySessionMeta(session, meta)

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return tokenPair, nil
}

// Logout завершает сессию по refresh токену.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.repo.DeleteSession(ctx, refreshToken); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return err
	}
	return nil
}

// issueSession выпускает токены, сохраняет сессию и проецирует профиль.
func (s *AuthService) issueSession(ctx context.Context, row *models.ProfileRow, meta map[string]string) (*AuthResult, error) {
	actor, err := ProjectActor(row)
	if err != nil {
		return nil, err
	}

	tokenPair, _, refreshExp, err := s.tokenManager.GeneratePair(row.UserID, row.Role)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:       row.UserID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}
	applySessionMeta(session, meta)

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &AuthResult{Actor: actor, TokenPair: tokenPair}, nil
}

// teardownSuspended снимает все сессии заблокированного аккаунта
// и возвращает ошибку блокировки.
func (s *AuthService) teardownSuspended(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeleteAllSessions(ctx, userID); err != nil {
		if logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			}).Warn("auth service: не удалось снять сессии заблокированного аккаунта")
		}
	}
	return apperror.ErrAccountSuspended
}

// resolveRole применяет переопределение seed-admin: зарезервированный email
// всегда получает роль admin, независимо от запрошенной.
func (s *AuthService) resolveRole(email, requested string) string {
	if s.seedAdminEmail != "" && strings.ToLower(email) == s.seedAdminEmail {
		return models.RoleAdmin
	}
	return requested
}

// applySessionMeta переносит user agent и IP в сессию.
func applySessionMeta(session *models.Session, meta map[string]string) {
	if meta == nil {
		return
	}
	if ua, ok := meta["user_agent"]; ok {
		session.UserAgent = &ua
	}
	if ip, ok := meta["ip"]; ok {
		session.IPAddress = &ip
	}
}

// deriveFullName формирует читаемое имя из email для восстановленного профиля.
func deriveFullName(email string) string {
	name := strings.Split(email, "@")[0]
	name = strings.NewReplacer(".", " ", "_", " ", "+", " ").Replace(name)
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		name = "user " + uuid.NewString()[:6]
	}
	return name
}
