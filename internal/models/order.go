package models

import "time"

// OrderTrackingState представляет один отслеживаемый (невыполненный) ордер
//
// Создаётся на событии открытия ордера; удаляется при терминальном статусе
// (filled/cancelled/rejected) либо после успешной отмены по возрасту.
//
// Исключение: записи ног spread-пары живут до BothFilled или до завершения
// partial-fill recovery - иначе зеркалированное состояние пары пропадёт
// вместе с первой заполненной ногой.
type OrderTrackingState struct {
	OrderID    string    `json:"order_id"`
	InstanceID string    `json:"instance_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`   // buy, sell
	Status     string    `json:"status"` // New, PartiallyFilled, Filled, Cancelled, Rejected
	CreatedAt  time.Time `json:"created_time"`
	Timeframe  string    `json:"timeframe"`
	RunID      string    `json:"run_id"`

	// Spread - СОБСТВЕННАЯ копия состояния пары для ног spread-сделки.
	//
	// ВАЖНО: состояние намеренно денормализовано - обе записи пары хранят
	// по копии, и каждое обновление пишется в ОБЕ записи. Не "чинить"
	// заменой на общий указатель: читатели берут состояние из любой из
	// двух записей, и инвариант идентичности копий закреплён тестами.
	Spread *SpreadState `json:"spread,omitempty"`
}

// Статусы ордера (как их отдаёт push-фид биржи)
const (
	OrderStatusNew             = "New"
	OrderStatusPartiallyFilled = "PartiallyFilled"
	OrderStatusFilled          = "Filled"
	OrderStatusCancelled       = "Cancelled"
	OrderStatusRejected        = "Rejected"
)

// Стороны ордера
const (
	OrderSideBuy  = "buy"
	OrderSideSell = "sell"
)
