package websocket

import (
	"time"

	"tradebot/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeNotification - новое уведомление
	// Отправляется при действиях монитора: подтяжка стопа, отмена,
	// закрытие, recovery, ошибки вызовов биржи
	MessageTypeNotification MessageType = "notification"

	// MessageTypePositionUpdate - снимок отслеживаемых позиций
	MessageTypePositionUpdate MessageType = "positionUpdate"

	// MessageTypeOrderUpdate - снимок отслеживаемых ордеров
	MessageTypeOrderUpdate MessageType = "orderUpdate"

	// MessageTypeStatusUpdate - сводка состояния монитора
	MessageTypeStatusUpdate MessageType = "statusUpdate"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	Data *models.Notification `json:"data"`
}

// PositionUpdateMessage - сообщение со снимком позиций
type PositionUpdateMessage struct {
	BaseMessage
	Data []models.PositionTrackingState `json:"data"`
}

// OrderUpdateMessage - сообщение со снимком ордеров
type OrderUpdateMessage struct {
	BaseMessage
	Data []models.OrderTrackingState `json:"data"`
}

// StatusUpdateMessage - сообщение со сводкой состояния монитора
type StatusUpdateMessage struct {
	BaseMessage
	Data interface{} `json:"data"`
}

// ============ Фабричные функции для создания сообщений ============

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(notif *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now().UTC(),
		},
		Data: notif,
	}
}

// NewPositionUpdateMessage создает сообщение со снимком позиций
func NewPositionUpdateMessage(positions []models.PositionTrackingState) *PositionUpdateMessage {
	return &PositionUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePositionUpdate,
			Timestamp: time.Now().UTC(),
		},
		Data: positions,
	}
}

// NewOrderUpdateMessage создает сообщение со снимком ордеров
func NewOrderUpdateMessage(orders []models.OrderTrackingState) *OrderUpdateMessage {
	return &OrderUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeOrderUpdate,
			Timestamp: time.Now().UTC(),
		},
		Data: orders,
	}
}

// NewStatusUpdateMessage создает сообщение со сводкой монитора
func NewStatusUpdateMessage(status interface{}) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatusUpdate,
			Timestamp: time.Now().UTC(),
		},
		Data: status,
	}
}
