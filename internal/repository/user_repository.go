package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/influmarket-backend/internal/feed"
	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/repository/common"
)

// ErrUserNotFound возвращается, когда запись пользователя не найдена.
var ErrUserNotFound = errors.New("user not found")

// ErrProfileNotFound возвращается, когда запись профиля не найдена.
var ErrProfileNotFound = errors.New("profile not found")

// ErrSessionNotFound возвращается, когда сессия не найдена.
var ErrSessionNotFound = errors.New("session not found")

// allowedProfileColumns — колонки profiles, доступные для частичного обновления.
// Роль, статус и email этим путём не меняются.
var allowedProfileColumns = map[string]struct{}{
	"full_name":            {},
	"avatar_url":           {},
	"onboarding_completed": {},
	"balance":              {},
	"company_profile":      {},
	"influencer_profile":   {},
}

// UserRepository отвечает за работу с таблицами users, profiles и user_sessions.
type UserRepository struct {
	db   *sqlx.DB
	feed *feed.Feed
}

// NewUserRepository создаёт экземпляр репозитория.
// Лента изменений опциональна: события profiles публикуются, если она задана.
func NewUserRepository(db *sqlx.DB, changeFeed *feed.Feed) *UserRepository {
	return &UserRepository{db: db, feed: changeFeed}
}

// CreateUser создаёт учётную запись.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.Email, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("user repository: create: %w", err)
	}

	return nil
}

// GetUserByEmail возвращает учётную запись по email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return common.GetByField[models.User](ctx, r.db, "users", "email", strings.ToLower(email), ErrUserNotFound)
}

// GetUserByID возвращает учётную запись по идентификатору.
func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return common.GetByID[models.User](ctx, r.db, "users", id, ErrUserNotFound)
}

// CreateProfile создаёт строку профиля участника.
func (r *UserRepository) CreateProfile(ctx context.Context, row *models.ProfileRow) error {
	query := `
		INSERT INTO profiles (user_id, full_name, email, role, status, onboarding_completed, balance, avatar_url, company_profile, influencer_profile)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	if row.Status == "" {
		row.Status = models.ActorStatusActive
	}

	if err := r.db.QueryRowxContext(
		ctx, query,
		row.UserID, row.FullName, strings.ToLower(row.Email), row.Role, row.Status,
		row.OnboardingCompleted, row.Balance, row.AvatarURL,
		nullableJSON(row.CompanyProfile), nullableJSON(row.InfluencerProfile),
	).Scan(&row.CreatedAt, &row.UpdatedAt); err != nil {
		return fmt.Errorf("user repository: create profile: %w", err)
	}

	r.publishProfile(feed.OpInsert, row)

	return nil
}

// GetProfile возвращает строку профиля пользователя.
func (r *UserRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.ProfileRow, error) {
	return common.GetByField[models.ProfileRow](ctx, r.db, "profiles", "user_id", userID, ErrProfileNotFound)
}

// ListProfiles возвращает все профили, отсортированные по дате создания.
func (r *UserRepository) ListProfiles(ctx context.Context) ([]models.ProfileRow, error) {
	var rows []models.ProfileRow
	query := `SELECT * FROM profiles ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("user repository: list profiles: %w", err)
	}
	return rows, nil
}

// ListProfilesByRole возвращает активные профили с указанной ролью.
func (r *UserRepository) ListProfilesByRole(ctx context.Context, role string) ([]models.ProfileRow, error) {
	var rows []models.ProfileRow
	query := `SELECT * FROM profiles WHERE role = $1 AND status = $2 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query, role, models.ActorStatusActive); err != nil {
		return nil, fmt.Errorf("user repository: list profiles by role: %w", err)
	}
	return rows, nil
}

// UpdateProfileFields выполняет частичное обновление профиля по карте
// колонка -> значение и возвращает обновлённую строку.
func (r *UserRepository) UpdateProfileFields(ctx context.Context, userID uuid.UUID, fields map[string]interface{}) (*models.ProfileRow, error) {
	if len(fields) == 0 {
		return r.GetProfile(ctx, userID)
	}

	// Детерминированный порядок колонок для стабильных запросов.
	columns := make([]string, 0, len(fields))
	for column := range fields {
		if _, ok := allowedProfileColumns[column]; !ok {
			return nil, fmt.Errorf("user repository: колонка %s недоступна для обновления: %w", column, common.ErrInvalidInput)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	setParts := make([]string, 0, len(columns)+1)
	args := make([]interface{}, 0, len(columns)+1)
	for i, column := range columns {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, i+1))
		args = append(args, fields[column])
	}
	setParts = append(setParts, "updated_at = NOW()")
	args = append(args, userID)

	query := fmt.Sprintf(
		`UPDATE profiles SET %s WHERE user_id = $%d RETURNING *`,
		strings.Join(setParts, ", "), len(args),
	)

	var row models.ProfileRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("user repository: update profile fields: %w", err)
	}

	r.publishProfile(feed.OpUpdate, &row)

	return &row, nil
}

// SetProfileStatus меняет статус аккаунта (active/suspended).
func (r *UserRepository) SetProfileStatus(ctx context.Context, userID uuid.UUID, status string) (*models.ProfileRow, error) {
	query := `UPDATE profiles SET status = $1, updated_at = NOW() WHERE user_id = $2 RETURNING *`

	var row models.ProfileRow
	if err := r.db.GetContext(ctx, &row, query, status, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("user repository: set profile status: %w", err)
	}

	r.publishProfile(feed.OpUpdate, &row)

	return &row, nil
}

// CreateSession сохраняет refresh-сессию пользователя.
func (r *UserRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO user_sessions (user_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		session.UserID, session.RefreshToken, session.UserAgent, session.IPAddress, session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt); err != nil {
		return fmt.Errorf("user repository: create session: %w", err)
	}

	return nil
}

// DeleteSession удаляет сессию по refresh токену.
func (r *UserRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE refresh_token = $1`, refreshToken)
	if err != nil {
		return fmt.Errorf("user repository: delete session: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteAllSessions удаляет все сессии пользователя.
// Используется при блокировке аккаунта: живые сессии должны умереть.
func (r *UserRepository) DeleteAllSessions(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("user repository: delete all sessions: %w", err)
	}
	return nil
}

// GetSessionByToken возвращает сессию по refresh токену.
func (r *UserRepository) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	return common.GetByField[models.Session](ctx, r.db, "user_sessions", "refresh_token", refreshToken, ErrSessionNotFound)
}

func (r *UserRepository) publishProfile(op feed.Op, row *models.ProfileRow) {
	if r.feed == nil {
		return
	}
	r.feed.Publish(feed.Event{Table: feed.TableProfiles, Op: op, Payload: *row})
}

// nullableJSON приводит пустой json.RawMessage к NULL для вставки.
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
