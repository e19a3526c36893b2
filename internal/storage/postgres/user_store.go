package postgres

import (
	"context"
	"fmt"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
)

// UserStore implements storage.UserStore on PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

// CreateUser creates a user. Returns ErrDuplicateKey if already registered.
func (s *UserStore) CreateUser(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (telegram_id, username, wallet_address, secret_key, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query, u.TelegramID, u.Username, u.WalletAddress, u.SecretKey, u.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: user %d", storage.ErrDuplicateKey, u.TelegramID)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by telegram id.
func (s *UserStore) GetUser(ctx context.Context, telegramID int64) (*domain.User, error) {
	query := `
		SELECT telegram_id, username, wallet_address, secret_key, created_at
		FROM users WHERE telegram_id = $1
	`

	var u domain.User
	err := s.pool.QueryRow(ctx, query, telegramID).Scan(
		&u.TelegramID, &u.Username, &u.WalletAddress, &u.SecretKey, &u.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: user %d", storage.ErrNotFound, telegramID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpsertSettings creates or replaces a user's settings.
func (s *UserStore) UpsertSettings(ctx context.Context, settings *domain.Settings) error {
	query := `
		INSERT INTO settings (telegram_id, slippage_tolerance)
		VALUES ($1, $2)
		ON CONFLICT (telegram_id) DO UPDATE SET slippage_tolerance = EXCLUDED.slippage_tolerance
	`

	_, err := s.pool.Exec(ctx, query, settings.TelegramID, settings.SlippageTolerance)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// GetSettings retrieves a user's settings.
func (s *UserStore) GetSettings(ctx context.Context, telegramID int64) (*domain.Settings, error) {
	query := `SELECT telegram_id, slippage_tolerance FROM settings WHERE telegram_id = $1`

	var st domain.Settings
	err := s.pool.QueryRow(ctx, query, telegramID).Scan(&st.TelegramID, &st.SlippageTolerance)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: settings for user %d", storage.ErrNotFound, telegramID)
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &st, nil
}
