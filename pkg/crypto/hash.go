package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyPassword   = errors.New("password cannot be empty")
	ErrPasswordTooLong = errors.New("password exceeds maximum length of 72 bytes")
)

// hashCost - стоимость bcrypt для debug-токенов. Токен вводится один раз
// на сессию, поэтому стоимость выше интерактивного минимума.
const hashCost = 12

// maxPasswordLength - bcrypt обрезает вход на 72 байтах
const maxPasswordLength = 72

// HashPassword хеширует секрет через bcrypt со случайной солью.
// Результат пригоден для хранения в конфигурации вместо открытого токена.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxPasswordLength {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPasswordMatch сверяет секрет с bcrypt-хешем.
// Сравнение constant-time; пустой вход, пустой или битый хеш дают false.
func CheckPasswordMatch(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
