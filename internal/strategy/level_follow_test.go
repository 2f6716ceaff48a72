package strategy

import (
	"math"
	"testing"
	"time"

	"tradebot/internal/models"
)

func candle(symbol string, low, high, close float64) models.Candle {
	return models.Candle{
		Symbol:    symbol,
		Timeframe: "60",
		Open:      (low + high) / 2,
		High:      high,
		Low:       low,
		Close:     close,
		Start:     time.Now().UTC().Add(-time.Hour),
		End:       time.Now().UTC(),
	}
}

func TestLevelFollowStopLevel(t *testing.T) {
	s := NewLevelFollowStrategy(3, 0)

	// Окно из трёх свечей, минимум 95
	s.AddCandle(candle("BTCUSDT", 100, 110, 105))
	s.AddCandle(candle("BTCUSDT", 95, 108, 100))
	s.AddCandle(candle("BTCUSDT", 98, 112, 110))

	level, ok := s.StopLevel("BTCUSDT", models.SideLong)
	if !ok {
		t.Fatal("expected stop level")
	}
	if level != 95 {
		t.Errorf("long stop level = %v, want 95", level)
	}

	// Шорт: максимум окна 112
	level, ok = s.StopLevel("BTCUSDT", models.SideShort)
	if !ok {
		t.Fatal("expected stop level")
	}
	if level != 112 {
		t.Errorf("short stop level = %v, want 112", level)
	}

	// Старая свеча с минимумом 95 выпадает из окна
	s.AddCandle(candle("BTCUSDT", 101, 115, 113))
	level, _ = s.StopLevel("BTCUSDT", models.SideLong)
	if level != 98 {
		t.Errorf("long stop level after roll = %v, want 98", level)
	}
}

func TestLevelFollowStopLevelBuffer(t *testing.T) {
	s := NewLevelFollowStrategy(2, 1) // отступ 1%

	s.AddCandle(candle("ETHUSDT", 100, 110, 105))

	level, _ := s.StopLevel("ETHUSDT", models.SideLong)
	if math.Abs(level-99) > 1e-9 {
		t.Errorf("long stop with buffer = %v, want 99", level)
	}

	level, _ = s.StopLevel("ETHUSDT", models.SideShort)
	if math.Abs(level-111.1) > 1e-9 {
		t.Errorf("short stop with buffer = %v, want 111.1", level)
	}
}

func TestLevelFollowShouldExit(t *testing.T) {
	s := NewLevelFollowStrategy(2, 0)
	s.AddCandle(candle("BTCUSDT", 100, 110, 105))

	trade := &models.Trade{Symbol: "BTCUSDT", Side: models.SideLong, EntryPrice: 105}

	// Закрытие выше уровня - держим, но уровень пересчитан
	cur := candle("BTCUSDT", 102, 108, 104)
	sig, err := s.ShouldExit(trade, &cur, nil)
	if err != nil {
		t.Fatalf("ShouldExit: %v", err)
	}
	if sig.ShouldExit {
		t.Error("expected hold while close is above the level")
	}
	if sig.Details.StopLevel != 100 {
		t.Errorf("recomputed stop = %v, want 100", sig.Details.StopLevel)
	}

	// Закрытие под уровнем - выход
	cur = candle("BTCUSDT", 97, 103, 99)
	sig, err = s.ShouldExit(trade, &cur, nil)
	if err != nil {
		t.Fatalf("ShouldExit: %v", err)
	}
	if !sig.ShouldExit {
		t.Error("expected exit when close crossed the level")
	}
	if sig.Details.Reason == "" {
		t.Error("exit signal must carry a reason")
	}
}

func TestLevelFollowShouldExitShort(t *testing.T) {
	s := NewLevelFollowStrategy(2, 0)
	s.AddCandle(candle("BTCUSDT", 100, 110, 105))

	trade := &models.Trade{Symbol: "BTCUSDT", Side: models.SideShort, EntryPrice: 105}

	cur := candle("BTCUSDT", 104, 111, 111)
	sig, err := s.ShouldExit(trade, &cur, nil)
	if err != nil {
		t.Fatalf("ShouldExit: %v", err)
	}
	if !sig.ShouldExit {
		t.Error("expected exit when close crossed the high")
	}
}

func TestLevelFollowNoCandles(t *testing.T) {
	s := NewLevelFollowStrategy(3, 0)
	trade := &models.Trade{Symbol: "BTCUSDT", Side: models.SideLong}

	cur := candle("BTCUSDT", 97, 103, 99)
	sig, err := s.ShouldExit(trade, &cur, nil)
	if err != nil {
		t.Fatalf("ShouldExit: %v", err)
	}
	if sig.ShouldExit {
		t.Error("no window yet, must hold")
	}
	if sig.Details.StopLevel != 0 {
		t.Errorf("stop level must stay 0 without candles, got %v", sig.Details.StopLevel)
	}
}

func TestLevelFollowMissingInput(t *testing.T) {
	s := NewLevelFollowStrategy(3, 0)
	if _, err := s.ShouldExit(nil, nil, nil); err == nil {
		t.Error("expected error for nil input")
	}
}

func TestLevelFollowMonitoringMetadata(t *testing.T) {
	s := NewLevelFollowStrategy(3, 0)
	meta := s.MonitoringMetadata()

	if meta.EnableRRTightening == nil || *meta.EnableRRTightening {
		t.Error("RR tightening must be disabled by this strategy")
	}
	if meta.EnableTPProximity == nil || *meta.EnableTPProximity {
		t.Error("TP proximity must be disabled by this strategy")
	}
	if meta.EnableAgeCancellation != nil {
		t.Error("age cancellation must stay at the global default")
	}
}
