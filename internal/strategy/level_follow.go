package strategy

import (
	"fmt"

	"tradebot/internal/models"
)

// LevelFollowStrategy ведёт стоп за экстремумами последних свечей
//
// Лонг: стоп под минимумом последних Lookback свечей с отступом
// BufferPct. Шорт: над максимумом. Выход - когда закрытие свечи
// пересекает пересчитанный уровень.
//
// Реализует обе способности: ExitPolicy (проверка выхода) и
// MonitoringPolicy (отключает RR-лестницу и TP-trailing для своих
// позиций - уровнями управляет сама стратегия).
type LevelFollowStrategy struct {
	Lookback  int     // сколько последних свечей учитывать
	BufferPct float64 // отступ за экстремум в процентах

	candles map[string][]models.Candle
}

// NewLevelFollowStrategy создаёт стратегию с заданным окном
func NewLevelFollowStrategy(lookback int, bufferPct float64) *LevelFollowStrategy {
	if lookback < 1 {
		lookback = 1
	}
	return &LevelFollowStrategy{
		Lookback:  lookback,
		BufferPct: bufferPct,
		candles:   make(map[string][]models.Candle),
	}
}

// AddCandle добавляет закрытую свечу в окно символа
func (s *LevelFollowStrategy) AddCandle(c models.Candle) {
	window := append(s.candles[c.Symbol], c)
	if len(window) > s.Lookback {
		window = window[len(window)-s.Lookback:]
	}
	s.candles[c.Symbol] = window
}

// StopLevel возвращает текущий уровень стопа для символа и стороны
//
// Второе значение false, если свечей ещё нет.
func (s *LevelFollowStrategy) StopLevel(symbol, side string) (float64, bool) {
	window := s.candles[symbol]
	if len(window) == 0 {
		return 0, false
	}

	if side == models.SideShort {
		high := window[0].High
		for _, c := range window[1:] {
			if c.High > high {
				high = c.High
			}
		}
		return high * (1 + s.BufferPct/100), true
	}

	low := window[0].Low
	for _, c := range window[1:] {
		if c.Low < low {
			low = c.Low
		}
	}
	return low * (1 - s.BufferPct/100), true
}

// ShouldExit реализует ExitPolicy
func (s *LevelFollowStrategy) ShouldExit(trade *models.Trade, current *models.Candle, pair *models.Candle) (ExitSignal, error) {
	if trade == nil || current == nil {
		return ExitSignal{}, fmt.Errorf("level follow: trade and current candle are required")
	}

	stopLevel, ok := s.StopLevel(trade.Symbol, trade.Side)
	if !ok {
		// Свечей ещё нет - уровень не пересчитан, держим
		return ExitSignal{}, nil
	}

	details := ExitDetails{StopLevel: stopLevel}

	crossed := current.Close <= stopLevel
	if trade.Side == models.SideShort {
		crossed = current.Close >= stopLevel
	}

	if crossed {
		details.Reason = fmt.Sprintf("close %.4f crossed follow level %.4f", current.Close, stopLevel)
		return ExitSignal{ShouldExit: true, Details: details}, nil
	}

	return ExitSignal{Details: details}, nil
}

// MonitoringMetadata реализует MonitoringPolicy
func (s *LevelFollowStrategy) MonitoringMetadata() MonitoringMetadata {
	return MonitoringMetadata{
		EnableRRTightening: BoolPtr(false),
		EnableTPProximity:  BoolPtr(false),
	}
}
