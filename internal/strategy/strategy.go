package strategy

import (
	"tradebot/internal/models"
)

// Стратегия подключается к позиции опционально и описывается двумя
// независимыми интерфейсами-способностями. Конкретная стратегия может
// реализовать любой из них (или оба); монитор проверяет способности
// через type assertion при привязке.

// ExitPolicy - стратегия умеет отвечать "пора ли выходить"
type ExitPolicy interface {
	// ShouldExit проверяет условие выхода по закрытию текущей свечи.
	// pairCandle передаётся только для spread-сделок, иначе nil.
	//
	// Ошибка трактуется вызывающим как "держать" (fail-safe: спорное
	// состояние стратегии не форсирует выход).
	ShouldExit(trade *models.Trade, current *models.Candle, pair *models.Candle) (ExitSignal, error)
}

// MonitoringPolicy - стратегия задаёт собственные политики мониторинга,
// перекрывающие глобальную конфигурацию для своей позиции
type MonitoringPolicy interface {
	MonitoringMetadata() MonitoringMetadata
}

// ExitSignal - результат проверки условия выхода
type ExitSignal struct {
	ShouldExit bool
	Details    ExitDetails
}

// ExitDetails - причина выхода и пересчитанные стратегией уровни
//
// StopLevel/TPLevel заполняются и при "держать": монитор синхронизирует
// их с биржевыми стопами. 0 = уровень не пересчитан.
type ExitDetails struct {
	Reason    string  `json:"reason"`
	StopLevel float64 `json:"stop_level,omitempty"`
	TPLevel   float64 `json:"tp_level,omitempty"`
}

// MonitoringMetadata - пер-позиционные переопределения политик
//
// nil-указатель = оставить глобальную настройку.
type MonitoringMetadata struct {
	EnableRRTightening    *bool
	EnableTPProximity     *bool
	EnableAgeCancellation *bool

	// Переопределения порогов отмены по возрасту. 0 = не переопределять.
	AgeCancellationBars    int
	AgeCancellationSeconds int
}

// BoolPtr - помощник для заполнения переопределений
func BoolPtr(v bool) *bool {
	return &v
}
