package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/bippity/Invincible-Tiles/internal/config"
)

// MemoryUserRepo потокобезопасное хранилище администраторов REST в памяти.
// Учётки приходят из конфигурации, ID начинаются с 1.
type MemoryUserRepo struct {
	mu     sync.RWMutex
	users  map[string]*User // ключ = lowercase(username)
	nextID uint64
}

// NewMemoryUserRepo создаёт пустой репозиторий.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users:  make(map[string]*User),
		nextID: 1,
	}
}

// NewMemoryUserRepoFromConfig заполняет репозиторий учётками из конфигурации.
func NewMemoryUserRepoFromConfig(users []config.UserConfig) (*MemoryUserRepo, error) {
	repo := NewMemoryUserRepo()
	for _, u := range users {
		if _, err := repo.CreateUser(u.Username, u.PasswordHash, u.Permissions); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

// GetUserByUsername ищет пользователя без учета регистра.
func (r *MemoryUserRepo) GetUserByUsername(username string) (*User, error) {
	key := normalize(username)
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[key]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// CreateUser добавляет пользователя, если имя свободно.
func (r *MemoryUserRepo) CreateUser(username string, passwordHash string, permissions []string) (*User, error) {
	key := normalize(username)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[key]; exists {
		return nil, ErrUserExists
	}

	user := &User{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Permissions:  append([]string(nil), permissions...),
		CreatedAt:    time.Now(),
	}
	r.nextID++
	r.users[key] = user
	return user, nil
}

// ValidateCredentials проверяет пароль и отмечает время входа.
func (r *MemoryUserRepo) ValidateCredentials(username, password string) (*User, error) {
	key := normalize(username)
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[key]
	if !ok || !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	user.LastLogin = time.Now()
	return user, nil
}

// нормализация имени
func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
