package exchange

import (
	"context"
	"time"
)

// Executor - исполнитель торговых действий на бирже
//
// Монитор вызывает его синхронно; retry транспортных ошибок и
// таймауты - забота реализации. Бизнес-отказ биржи возвращается
// как ошибка без повторов: монитор повторит действие сам на
// следующем событии или тике.
type Executor interface {
	// SetTradingStop выставляет стоп-лосс и/или тейк-профит позиции.
	// Нулевое значение = параметр не менять.
	SetTradingStop(ctx context.Context, symbol string, stopLoss, takeProfit float64) error

	// CancelOrder отменяет активный ордер
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// ClosePosition закрывает позицию по рынку
	ClosePosition(ctx context.Context, symbol string) error
}

// Lister - опрос текущего состояния для poll-режима
//
// Используется планировщиком как fallback, когда push-фид недоступен.
type Lister interface {
	// ListPositions возвращает все открытые позиции аккаунта
	ListPositions(ctx context.Context) ([]*PositionState, error)

	// ListOpenOrders возвращает все активные ордера аккаунта
	ListOpenOrders(ctx context.Context) ([]*OrderState, error)
}

// ============================================================
// Формы событий push-фида
// ============================================================

// PositionState - снимок позиции из фида или опроса
type PositionState struct {
	Symbol     string  `json:"symbol"`
	Size       float64 `json:"size,string"`
	Side       string  `json:"side"` // long, short; пусто = позиция закрыта
	EntryPrice float64 `json:"entryPrice,string"`
	StopLoss   float64 `json:"stopLoss,string"`
	TakeProfit float64 `json:"takeProfit,string"`
	MarkPrice  float64 `json:"markPrice,string"`
}

// OrderState - снимок ордера из фида или опроса
type OrderState struct {
	OrderID     string    `json:"orderId"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Status      string    `json:"orderStatus"` // New, PartiallyFilled, Filled, Cancelled, Rejected
	CreatedTime time.Time `json:"-"`
}

// ExecutionRecord - одно исполнение (fill) из фида
type ExecutionRecord struct {
	OrderID   string  `json:"orderId"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	ExecQty   float64 `json:"execQty,string"`
	ExecPrice float64 `json:"execPrice,string"`
}

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}
