package auth

import "time"

// User учётная запись администратора REST API.
type User struct {
	ID           uint64    // Неизменяемый уникальный идентификатор
	Username     string    // Уникальное имя (без учета регистра)
	PasswordHash string    // bcrypt хеш пароля (60 символов)
	Permissions  []string  // Права, которые попадут в токен
	CreatedAt    time.Time // Время создания учётки (время сервера)
	LastLogin    time.Time // Последний успешный вход
}
