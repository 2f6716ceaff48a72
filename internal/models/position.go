package models

import "time"

// TrackingKey - составной ключ для partition'а состояния по инстансам
//
// Несколько независимых торговых инстансов делят один процесс монитора,
// поэтому ключ позиции - пара (инстанс, символ), а не просто символ.
// Struct key в map не требует конкатенации строк.
type TrackingKey struct {
	InstanceID string
	Symbol     string
}

// PositionTrackingState представляет runtime состояние одной открытой позиции
//
// Создаётся при первом position update (или через RegisterPosition для
// paper-режима) и удаляется при нулевом размере позиции либо после
// успешного закрытия.
type PositionTrackingState struct {
	InstanceID string `json:"instance_id"`
	Symbol     string `json:"symbol"`
	RunID      string `json:"run_id"`
	TradeID    string `json:"trade_id,omitempty"`

	Side       string    `json:"side"`        // long, short
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	Timeframe  string    `json:"timeframe"`   // минуты числом ("5", "60", "240") или "D"/"W"/"M"

	// OriginalSL фиксируется при регистрации и больше НЕ меняется:
	// шаги подтяжки и age-tightening считают смещения от него.
	OriginalSL float64 `json:"original_sl"`

	// CurrentSL двигается только в выгодную сторону позиции.
	CurrentSL  float64 `json:"current_sl"`
	TakeProfit float64 `json:"take_profit"`

	// LastTighteningStep - индекс последнего применённого шага лестницы.
	// -1 = ни один шаг не применён. Монотонно не убывает.
	LastTighteningStep int `json:"last_tightening_step"`

	// One-shot флаги: переходят false→true ровно один раз и только
	// после успешного вызова биржи.
	TPProximityActivated bool `json:"tp_proximity_activated"`
	AgeTighteningApplied bool `json:"age_tightening_applied"`

	// Spread заполнен только для парных (spread-based) позиций.
	Spread *SpreadState `json:"spread,omitempty"`
}

// SpreadState - состояние парной (двухногой) сделки
//
// Нога X и нога Y - два одновременных противоположных ордера на двух
// символах. Эти же поля денормализованно дублируются в обеих записях
// OrderTrackingState, ссылающихся на пару (см. инвариант зеркалирования
// в OrderTrackingState).
type SpreadState struct {
	PairSymbol string `json:"pair_symbol"`
	PairSide   string `json:"pair_side"` // long, short

	OrderIDX string `json:"order_id_x"`
	OrderIDY string `json:"order_id_y"`
	SymbolX  string `json:"symbol_x"`
	SymbolY  string `json:"symbol_y"`

	FillPriceX float64 `json:"fill_price_x"`
	FillPriceY float64 `json:"fill_price_y"`
	FillQtyX   float64 `json:"fill_qty_x"`
	FillQtyY   float64 `json:"fill_qty_y"`

	// BothFilled = true только когда заполнены обе цены.
	BothFilled bool `json:"both_filled"`

	// FirstLegFillTime - момент заполнения первой ноги (UTC).
	// Отсчёт таймаута частичного заполнения идёт от него.
	FirstLegFillTime *time.Time `json:"first_leg_fill_time,omitempty"`

	// PartialFillTimeoutSec - таймаут ожидания второй ноги (default 60).
	PartialFillTimeoutSec int `json:"partial_fill_timeout_seconds"`

	// PartialFillHandled выставляется один раз при recovery, независимо
	// от исхода отдельных шагов recovery (защита от повторных market-ордеров).
	PartialFillHandled bool `json:"partial_fill_handled"`
}

// Filled возвращает true если нога X (или Y) уже заполнена
func (s *SpreadState) FilledX() bool { return s.FillPriceX != 0 }
func (s *SpreadState) FilledY() bool { return s.FillPriceY != 0 }

// PartiallyFilled - ровно одна нога заполнена
func (s *SpreadState) PartiallyFilled() bool {
	return s.FilledX() != s.FilledY()
}

// Key возвращает ключ пары для дедупликации в рамках одного прохода sweep'а
func (s *SpreadState) Key() [2]string {
	return [2]string{s.OrderIDX, s.OrderIDY}
}

// Clone возвращает независимую копию (для зеркалирования между записями)
func (s *SpreadState) Clone() *SpreadState {
	if s == nil {
		return nil
	}
	c := *s
	if s.FirstLegFillTime != nil {
		t := *s.FirstLegFillTime
		c.FirstLegFillTime = &t
	}
	return &c
}

// Стороны позиции
const (
	SideLong  = "long"
	SideShort = "short"
)

// NoTighteningStep - значение LastTighteningStep до первого шага
const NoTighteningStep = -1
