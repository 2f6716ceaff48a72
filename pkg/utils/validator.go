package utils

import (
	"fmt"
	"strings"
)

// validator.go - валидация входных данных
//
// Используется на границах системы: REST API и регистрация позиций.
// Возвращает error с описанием проблемы или nil.

const (
	minSymbolLength = 2
	maxSymbolLength = 30
)

// ValidateSymbol проверяет формат торгового символа
//
// Допустимы буквы, цифры и разделители "-", "_", "/".
// Регистр не важен (нормализуется отдельно).
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is empty")
	}

	if len(symbol) < minSymbolLength {
		return fmt.Errorf("symbol %q is too short (min %d characters)", symbol, minSymbolLength)
	}

	if len(symbol) > maxSymbolLength {
		return fmt.Errorf("symbol %q is too long (max %d characters)", symbol, maxSymbolLength)
	}

	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '/':
		default:
			return fmt.Errorf("symbol %q contains invalid character %q", symbol, r)
		}
	}

	return nil
}

// NormalizeSymbol приводит символ к каноническому виду: верхний
// регистр, без разделителей ("btc-usdt" -> "BTCUSDT")
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
	return s
}

// ValidateTimeframe проверяет, что таймфрейм известен системе
func ValidateTimeframe(timeframe string) error {
	if timeframe == "" {
		return fmt.Errorf("timeframe is empty")
	}
	if TimeframeSeconds(timeframe) <= 0 {
		return fmt.Errorf("unknown timeframe %q", timeframe)
	}
	return nil
}

// ValidateSide проверяет сторону позиции
func ValidateSide(side string) error {
	switch side {
	case "long", "short":
		return nil
	default:
		return fmt.Errorf("side must be %q or %q, got %q", "long", "short", side)
	}
}
