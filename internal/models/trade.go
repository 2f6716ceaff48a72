package models

import "time"

// Trade - логическая запись одного торгового решения
//
// Покрывает жизненный цикл от выставления ордера до закрытия позиции.
// Передаётся мосту стратегии при проверке условий выхода; TradeID и RunID
// используются для корреляции записей аудита.
type Trade struct {
	TradeID    string    `json:"trade_id"`
	RunID      string    `json:"run_id"`
	InstanceID string    `json:"instance_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // long, short
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Timeframe  string    `json:"timeframe"`
	OpenedAt   time.Time `json:"opened_at"`

	// Для spread-сделок: второй символ пары и его сторона
	IsSpread   bool   `json:"is_spread"`
	PairSymbol string `json:"pair_symbol,omitempty"`
	PairSide   string `json:"pair_side,omitempty"`
}
