package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/influmarket-backend/internal/repository"
)

// mockAuthRepository реализует AuthRepository для тестов.
type mockAuthRepository struct {
	usersByEmail map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	profiles     map[uuid.UUID]*models.ProfileRow
	sessions     map[string]*models.Session
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[uuid.UUID]*models.User),
		profiles:     make(map[uuid.UUID]*models.ProfileRow),
		sessions:     make(map[string]*models.Session),
	}
}

func (m *mockAuthRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockAuthRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) CreateProfile(ctx context.Context, row *models.ProfileRow) error {
	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt
	m.profiles[row.UserID] = row
	return nil
}

func (m *mockAuthRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.ProfileRow, error) {
	if row, ok := m.profiles[userID]; ok {
		return row, nil
	}
	return nil, repository.ErrProfileNotFound
}

func (m *mockAuthRepository) CreateSession(ctx context.Context, session *models.Session) error {
	session.ID = uuid.New()
	session.CreatedAt = time.Now()
	m.sessions[session.RefreshToken] = session
	return nil
}

func (m *mockAuthRepository) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	if session, ok := m.sessions[refreshToken]; ok {
		return session, nil
	}
	return nil, repository.ErrSessionNotFound
}

func (m *mockAuthRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	delete(m.sessions, refreshToken)
	return nil
}

func (m *mockAuthRepository) DeleteAllSessions(ctx context.Context, userID uuid.UUID) error {
	for token, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, token)
		}
	}
	return nil
}

func newTestAuthService(repo *mockAuthRepository) *AuthService {
	tokenManager := NewTokenManager("access", "refresh", time.Minute, time.Hour)
	return NewAuthService(repo, tokenManager, "admin@influmarket.app")
}

func TestAuthService_RegisterAndSignIn(t *testing.T) {
	repo := newMockAuthRepository()
	svc := newTestAuthService(repo)

	ctx := context.Background()
	res, err := svc.Login(ctx, LoginInput{
		Role:     models.RoleInfluencer,
		Email:    "maria@example.com",
		Password: "password123",
		FullName: "Maria Silva",
	}, map[string]string{"ip": "127.0.0.1"})
	if err != nil {
		t.Fatalf("регистрация вернула ошибку: %v", err)
	}

	if res.Actor.ID == uuid.Nil {
		t.Fatalf("ID пользователя должен быть установлен")
	}
	if res.Actor.Role != models.RoleInfluencer {
		t.Fatalf("ожидалась роль influencer, получили %s", res.Actor.Role)
	}
	if res.Actor.OnboardingCompleted {
		t.Fatalf("онбординг нового пользователя должен быть не завершён")
	}
	if res.Actor.Balance != 0 {
		t.Fatalf("баланс нового пользователя должен быть нулевым")
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("ожидалась одна сессия, получили %d", len(repo.sessions))
	}

	signIn, err := svc.Login(ctx, LoginInput{
		Email:    "maria@example.com",
		Password: "password123",
	}, nil)
	if err != nil {
		t.Fatalf("вход вернул ошибку: %v", err)
	}
	if signIn.TokenPair.AccessToken == "" {
		t.Fatalf("ожидался access токен")
	}
}

func TestAuthService_SignInUnknownEmail(t *testing.T) {
	repo := newMockAuthRepository()
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "password123",
	}, nil)

	// Ошибка должна быть различимой: клиент по ней предлагает регистрацию.
	if !apperror.IsUserNotFound(err) {
		t.Fatalf("ожидалась ошибка USER_NOT_FOUND, получили %v", err)
	}
}

func TestAuthService_SignInWrongPassword(t *testing.T) {
	repo := newMockAuthRepository()
	svc := newTestAuthService(repo)
	ctx := context.Background()

	if _, err := svc.Login(ctx, LoginInput{
		Role:     models.RoleBusiness,
		Email:    "shop@example.com",
		Password: "password123",
		FullName: "Loja Bella",
	}, nil); err != nil {
		t.Fatalf("регистрация вернула ошибку: %v", err)
	}

	_, err := svc.Login(ctx, LoginInput{
		Email:    "shop@example.com",
		Password: "wrong-password",
	}, nil)
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Fatalf("ожидалась ошибка неверных учётных данных, получили %v", err)
	}
	if apperror.IsUserNotFound(err) {
		t.Fatalf("неверный пароль не должен выглядеть как отсутствие пользователя")
	}
}

func TestAuthService_SeedAdminOverride(t *testing.T) {
	repo := newMockAuthRepository()
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), LoginInput{
		Role:     models.RoleBusiness,
		Email:    "admin@influmarket.app",
		Password: "password123",
		FullName: "Platform Admin",
	}, nil)
	if err != nil {
		t.Fatalf("регистрация вернула ошибку: %v", err)
	}

	// Зарезервированный email получает admin независимо от запрошенной роли.
	if res.Actor.Role != models.RoleAdmin {
		t.Fatalf("ожидалась роль admin, получили %s", res.Actor.Role)
	}
}

func TestAuthService_RepairMissingProfile(t *testing.T) {
	repo := newMockAuthRepository()
	svc := newTestAuthService(repo)
	ctx := context.Background()

	// Учётная запись есть, строки профиля нет.
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{ID: uuid.New(), Email: "orphan@example.com", PasswordHash: string(hash)}
	repo.usersByEmail[user.Email] = user
	repo.usersByID[user.ID] = user

	res, err := svc.Login(ctx, LoginInput{
		Email:    "orphan@example.com",
		Password: "password123",
		Role:     models.RoleInfluencer,
	}, nil)
	if err != nil {
		t.Fatalf("вход вернул ошибку: %v", err)
	}
	if res.Actor.Role != models.RoleInfluencer {
		t.Fatalf("восстановленный профиль должен получить запрошенную роль, получили %s", res.Actor.Role)
	}
	if _, ok := repo.profiles[user.ID]; !ok {
		t.Fatalf("профиль должен быть создан при входе")
	}

	// Для зарезервированного email переопределение admin действует и здесь.
	adminUser := &models.User{ID: uuid.New(), Email: "admin@influmarket.app", PasswordHash: string(hash)}
	repo.usersByEmail[adminUser.Email] = adminUser
	repo.usersByID[adminUser.ID] = adminUser

	adminRes, err := svc.Login(ctx, LoginInput{
		Email:    "admin@influmarket.app",
		Password: "password123",
	}, nil)
	if err != nil {
		t.Fatalf("вход вернул ошибку: %v", err)
	}
	if adminRes.Actor.Role != models.RoleAdmin {
		t.Fatalf("восстановленный профиль admin-email должен получить роль admin")
	}
}

func TestAuthService_SuspendedTeardown(t *testing.T) {
	repo := newMockAuthRepository()
	svc := newTestAuthService(repo)
	ctx := context.Background()

	res, err := svc.Login(ctx, LoginInput{
		Role:     models.RoleInfluencer,
		Email:    "blocked@example.com",
		Password: "password123",
		FullName: "Blocked User",
	}, nil)
	if err != nil {
		t.Fatalf("регистрация вернула ошибку: %v", err)
	}

	repo.profiles[res.Actor.ID].Status = models.ActorStatusSuspended

	_, err = svc.Login(ctx, LoginInput{
		Email:    "blocked@example.com",
		Password: "password123",
	}, nil)
	if !apperror.IsSuspended(err) {
		t.Fatalf("ожидалась ошибка блокировки, получили %v", err)
	}
	if len(repo.sessions) != 0 {
		t.Fatalf("сессии заблокированного аккаунта должны быть сняты")
	}

	// Восстановление сессии тоже завершает её принудительно.
	if _, err := svc.EstablishSession(ctx, res.Actor.ID); !apperror.IsSuspended(err) {
		t.Fatalf("ожидалась ошибка блокировки при восстановлении сессии, получили %v", err)
	}
}

func TestAuthService_Refresh(t *testing.T) {
	repo := newMockAuthRepository()
	svc := newTestAuthService(repo)
	ctx := context.Background()

	res, err := svc.Login(ctx, LoginInput{
		Role:     models.RoleBusiness,
		Email:    "shop@example.com",
		Password: "password123",
		FullName: "Loja Bella",
	}, nil)
	if err != nil {
		t.Fatalf("регистрация вернула ошибку: %v", err)
	}

	newPair, err := svc.Refresh(ctx, res.TokenPair.RefreshToken, nil)
	if err != nil {
		t.Fatalf("refresh вернул ошибку: %v", err)
	}
	if newPair.RefreshToken == res.TokenPair.RefreshToken {
		t.Fatalf("ожидался новый refresh токен")
	}
	if _, ok := repo.sessions[res.TokenPair.RefreshToken]; ok {
		t.Fatalf("старая сессия должна быть удалена")
	}

	// Завершённая сессия больше не обновляется, даже если JWT ещё валиден.
	if err := svc.Logout(ctx, newPair.RefreshToken); err != nil {
		t.Fatalf("logout вернул ошибку: %v", err)
	}
	if _, err := svc.Refresh(ctx, newPair.RefreshToken, nil); !apperror.Is(err, apperror.ErrCodeUnauthorized) {
		t.Fatalf("refresh после logout должен отклоняться, получили %v", err)
	}
}
