package memory

import (
	"context"
	"fmt"
	"sync"

	"solsniper/internal/domain"
	"solsniper/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu       sync.RWMutex
	users    map[int64]*domain.User
	settings map[int64]*domain.Settings
}

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:    make(map[int64]*domain.User),
		settings: make(map[int64]*domain.Settings),
	}
}

func (s *UserStore) CreateUser(_ context.Context, user *domain.User) error {
	if user == nil || user.TelegramID == 0 {
		return fmt.Errorf("%w: user missing telegram id", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.TelegramID]; exists {
		return fmt.Errorf("%w: user %d", storage.ErrDuplicateKey, user.TelegramID)
	}
	c := *user
	s.users[user.TelegramID] = &c
	return nil
}

func (s *UserStore) GetUser(_ context.Context, telegramID int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[telegramID]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", storage.ErrNotFound, telegramID)
	}
	c := *user
	return &c, nil
}

func (s *UserStore) UpsertSettings(_ context.Context, settings *domain.Settings) error {
	if settings == nil || settings.TelegramID == 0 {
		return fmt.Errorf("%w: settings missing telegram id", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *settings
	s.settings[settings.TelegramID] = &c
	return nil
}

func (s *UserStore) GetSettings(_ context.Context, telegramID int64) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[telegramID]
	if !ok {
		return nil, fmt.Errorf("%w: settings for user %d", storage.ErrNotFound, telegramID)
	}
	c := *settings
	return &c, nil
}

var _ storage.UserStore = (*UserStore)(nil)
