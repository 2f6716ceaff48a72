package websocket

import (
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"tradebot/internal/models"
	"tradebot/internal/monitor"
	"tradebot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub управляет всеми активными WebSocket соединениями
//
// Центральный менеджер broadcast сообщений подключенным UI-клиентам:
// уведомления о действиях монитора, снимки позиций и ордеров, сводка
// состояния. Broadcast неблокирующий: при полном канале сообщение
// сбрасывается с инкрементом счётчика (UI переживёт пропуск, монитор
// ждать не должен).
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Остановка главного цикла
	stop chan struct{}

	// Сброшенные из-за переполнения сообщения
	dropped atomic.Int64

	log *utils.Logger

	// Mutex для потокобезопасного доступа к clients
	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		log:        utils.GetGlobalLogger().WithComponent("ws_hub"),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Обрабатывает регистрацию, отмену регистрации и broadcast.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("ws client connected", utils.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("ws client disconnected", utils.Int("total", total))

		case message := <-h.broadcast:
			// Копируем список клиентов под коротким RLock, отправляем
			// без блокировки, медленных удаляем под write lock
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.log.Warn("removed slow ws clients",
					utils.Int("removed", len(toRemove)),
					utils.Int("total", total))
			}
		}
	}
}

// Stop останавливает главный цикл и закрывает все соединения
func (h *Hub) Stop() {
	close(h.stop)
}

// closeAllClients закрывает send-каналы всех клиентов при остановке
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// Broadcast сериализует и отправляет сообщение всем клиентам.
// Неблокирующий: при полном канале сообщение сбрасывается.
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("broadcast marshal failed", utils.Err(err))
		return
	}
	h.BroadcastRaw(data)
}

// BroadcastRaw отправляет уже сериализованное сообщение
func (h *Hub) BroadcastRaw(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.dropped.Add(1)
		monitor.RecordBufferOverflow("notification")
	}
}

// BroadcastNotification отправляет уведомление монитора.
// Реализует интерфейс broadcaster'а сервиса аудита.
func (h *Hub) BroadcastNotification(notif *models.Notification) {
	h.Broadcast(NewNotificationMessage(notif))
}

// BroadcastPositions отправляет снимок отслеживаемых позиций
func (h *Hub) BroadcastPositions(positions []models.PositionTrackingState) {
	h.Broadcast(NewPositionUpdateMessage(positions))
}

// BroadcastOrders отправляет снимок отслеживаемых ордеров
func (h *Hub) BroadcastOrders(orders []models.OrderTrackingState) {
	h.Broadcast(NewOrderUpdateMessage(orders))
}

// BroadcastStatus отправляет сводку состояния монитора
func (h *Hub) BroadcastStatus(status interface{}) {
	h.Broadcast(NewStatusUpdateMessage(status))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages возвращает число сброшенных сообщений
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
