package auth

import "errors"

// UserRepository хранение и поиск пользователей.
type UserRepository interface {
	// GetUserByUsername ищет без учета регистра. Если пользователя нет,
	// возвращает (nil, ErrUserNotFound).
	GetUserByUsername(username string) (*User, error)

	// CreateUser сохраняет пользователя. PasswordHash уже должен быть bcrypt хешем.
	// Занятое имя - ErrUserExists.
	CreateUser(username string, passwordHash string, permissions []string) (*User, error)

	// ValidateCredentials проверяет имя и пароль
	ValidateCredentials(username, password string) (*User, error)
}

// Ошибки репозитория
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
