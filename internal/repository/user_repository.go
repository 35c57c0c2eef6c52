package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/presencaplus/attendance-api/internal/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, name, email, password string, role models.UserRole) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	GetUserByID(ctx context.Context, userID string) (models.User, error)

	// UpdateFcmToken sets the user's device token, replacing any previous one.
	UpdateFcmToken(ctx context.Context, userID, token string) error
	// RemoveFcmToken unsets the user's device token. Unsetting an absent token
	// is a no-op; ErrNotFound means the user row itself does not exist.
	RemoveFcmToken(ctx context.Context, userID string) error
	// RemoveFcmTokens unsets the token for every listed user in one statement.
	RemoveFcmTokens(ctx context.Context, userIDs []string) (int64, error)
	// ListWithFcmToken returns up to limit users holding a token, ordered by
	// id, starting after afterID. Keyset pagination keeps the scan stable
	// while tokens are being unset concurrently.
	ListWithFcmToken(ctx context.Context, afterID string, limit int) ([]models.UserToken, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (u *userRepository) CreateUser(ctx context.Context, name, email, password string, role models.UserRole) (models.User, error) {
	if role == "" {
		role = models.RoleUser
	}
	if !models.IsValidRole(role) {
		return models.User{}, errors.New("invalid role")
	}

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}

	const query = `
		INSERT INTO users (name, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err = u.db.QueryRowContext(ctx, query, user.Name, user.Email, user.PasswordHash, user.Role, user.IsActive).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (u *userRepository) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := u.getUser(ctx, "email = $1", strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.User{}, errors.New("invalid credentials")
		}
		return models.User{}, err
	}

	if !user.IsActive {
		return models.User{}, errors.New("user is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, errors.New("invalid credentials")
	}

	return user, nil
}

func (u *userRepository) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	return u.getUser(ctx, "id = $1", userID)
}

func (u *userRepository) getUser(ctx context.Context, where string, arg interface{}) (models.User, error) {
	query := `
		SELECT id, name, email, password_hash, role, is_active, fcm_token, created_at, updated_at
		FROM users
		WHERE ` + where + ` AND deleted_at IS NULL`

	var (
		user     models.User
		fcmToken sql.NullString
	)
	err := u.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&fcmToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	if fcmToken.Valid {
		val := fcmToken.String
		user.FcmToken = &val
	}

	return user, nil
}

func (u *userRepository) UpdateFcmToken(ctx context.Context, userID, token string) error {
	const query = `
		UPDATE users
		SET fcm_token = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`
	return u.execExpectingRow(ctx, query, userID, token)
}

func (u *userRepository) RemoveFcmToken(ctx context.Context, userID string) error {
	const query = `
		UPDATE users
		SET fcm_token = NULL, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`
	return u.execExpectingRow(ctx, query, userID)
}

func (u *userRepository) execExpectingRow(ctx context.Context, query string, args ...interface{}) error {
	result, err := u.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (u *userRepository) RemoveFcmTokens(ctx context.Context, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	const query = `
		UPDATE users
		SET fcm_token = NULL, updated_at = now()
		WHERE id = ANY($1)`
	result, err := u.db.ExecContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (u *userRepository) ListWithFcmToken(ctx context.Context, afterID string, limit int) ([]models.UserToken, error) {
	const query = `
		SELECT id, fcm_token
		FROM users
		WHERE fcm_token IS NOT NULL AND deleted_at IS NULL AND id::text > $1
		ORDER BY id::text
		LIMIT $2`

	rows, err := u.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.UserToken
	for rows.Next() {
		var ut models.UserToken
		if err := rows.Scan(&ut.ID, &ut.FcmToken); err != nil {
			return nil, err
		}
		tokens = append(tokens, ut)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}
