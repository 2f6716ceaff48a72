package monitor

import "tradebot/internal/models"

// ValidStatusTransitions определяет допустимые переходы статусов ордера
//
// Статусы приходят из push-фида биржи; терминальные состояния переходов
// не имеют.
var ValidStatusTransitions = map[string][]string{
	models.OrderStatusNew: {
		models.OrderStatusPartiallyFilled,
		models.OrderStatusFilled,
		models.OrderStatusCancelled,
		models.OrderStatusRejected,
	},
	models.OrderStatusPartiallyFilled: {
		models.OrderStatusFilled,
		models.OrderStatusCancelled,
		models.OrderStatusRejected,
	},
	models.OrderStatusFilled:    {},
	models.OrderStatusCancelled: {},
	models.OrderStatusRejected:  {},
}

// CanTransition проверяет допустимость перехода статуса
//
// Повтор того же статуса (at-least-once доставка фида) допустим.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	allowed, ok := ValidStatusTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus возвращает true для финальных статусов ордера
func IsTerminalStatus(status string) bool {
	switch status {
	case models.OrderStatusFilled, models.OrderStatusCancelled, models.OrderStatusRejected:
		return true
	}
	return false
}

// IsOpenStatus возвращает true для ордеров, всё ещё стоящих в стакане
func IsOpenStatus(status string) bool {
	switch status {
	case models.OrderStatusNew, models.OrderStatusPartiallyFilled:
		return true
	}
	return false
}
