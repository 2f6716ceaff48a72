package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	stdjson "encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"tradebot/pkg/utils"
)

// PrivateFeed - приватный push-фид Bybit v5
//
// Подписывается на топики position, order и execution и доставляет
// декодированные события обработчикам. Обработчики вызываются из
// горутины чтения менеджера соединения, то есть из НЕСКОЛЬКИХ горутин
// на протяжении жизни фида (после переподключения горутина новая) -
// доставляйте события монитору через Dispatcher, не напрямую.
type PrivateFeed struct {
	apiKey    string
	secretKey string
	wsURL     string

	manager *WSReconnectManager
	log     *utils.Logger

	onPosition  func(*PositionState)
	onOrder     func(*OrderState)
	onExecution func(*ExecutionRecord)
}

// FeedConfig - параметры приватного фида
type FeedConfig struct {
	APIKey    string
	APISecret string
	WSURL     string // пусто = боевой stream.bybit.com
	Reconnect WSReconnectConfig
}

// NewPrivateFeed создаёт фид (без подключения)
func NewPrivateFeed(cfg FeedConfig, logger *utils.Logger) *PrivateFeed {
	if cfg.WSURL == "" {
		cfg.WSURL = "wss://stream.bybit.com/v5/private"
	}
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}

	f := &PrivateFeed{
		apiKey:    cfg.APIKey,
		secretKey: cfg.APISecret,
		wsURL:     cfg.WSURL,
		log:       logger.WithComponent("private_feed"),
	}

	manager := NewWSReconnectManager("bybit-private", cfg.WSURL, cfg.Reconnect)
	manager.SetAuthFunc(f.authenticate)
	manager.SetOnMessage(f.handleMessage)
	f.manager = manager
	return f
}

// OnPosition задаёт обработчик событий позиций
func (f *PrivateFeed) OnPosition(h func(*PositionState)) { f.onPosition = h }

// OnOrder задаёт обработчик событий ордеров
func (f *PrivateFeed) OnOrder(h func(*OrderState)) { f.onOrder = h }

// OnExecution задаёт обработчик исполнений
func (f *PrivateFeed) OnExecution(h func(*ExecutionRecord)) { f.onExecution = h }

// Start подключается и подписывается на приватные топики.
// Обработчики должны быть заданы ДО вызова.
func (f *PrivateFeed) Start() error {
	sub := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"position", "order", "execution"},
	}
	f.manager.AddSubscription(sub)

	if err := f.manager.Connect(); err != nil {
		return fmt.Errorf("private feed connect: %w", err)
	}
	return nil
}

// Close закрывает соединение фида
func (f *PrivateFeed) Close() error {
	return f.manager.Close()
}

// IsConnected сообщает, живо ли соединение
func (f *PrivateFeed) IsConnected() bool {
	return f.manager.IsConnected()
}

// authenticate выполняет auth-рукопожатие приватного канала
func (f *PrivateFeed) authenticate(conn *websocket.Conn) error {
	expires := time.Now().UnixMilli() + 10000

	h := hmac.New(sha256.New, []byte(f.secretKey))
	h.Write([]byte(fmt.Sprintf("GET/realtime%d", expires)))
	signature := hex.EncodeToString(h.Sum(nil))

	return conn.WriteJSON(map[string]interface{}{
		"op":   "auth",
		"args": []interface{}{f.apiKey, expires, signature},
	})
}

// handleMessage разбирает одно сообщение фида по топику
func (f *PrivateFeed) handleMessage(message []byte) {
	var envelope struct {
		Topic string             `json:"topic"`
		Op    string             `json:"op"`
		Data  stdjson.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		f.log.Warn("undecodable feed message", utils.Err(err))
		return
	}

	// Служебные ответы (auth, subscribe, pong) приходят без топика
	if envelope.Topic == "" {
		return
	}

	switch {
	case envelope.Topic == "position":
		f.dispatchPositions(envelope.Data)
	case envelope.Topic == "order":
		f.dispatchOrders(envelope.Data)
	case strings.HasPrefix(envelope.Topic, "execution"):
		f.dispatchExecutions(envelope.Data)
	}
}

func (f *PrivateFeed) dispatchPositions(data []byte) {
	if f.onPosition == nil {
		return
	}
	var rows []bybitPosition
	if err := json.Unmarshal(data, &rows); err != nil {
		f.log.Warn("bad position payload", utils.Err(err))
		return
	}
	for i := range rows {
		f.onPosition(rows[i].toState())
	}
}

func (f *PrivateFeed) dispatchOrders(data []byte) {
	if f.onOrder == nil {
		return
	}
	var rows []bybitOrder
	if err := json.Unmarshal(data, &rows); err != nil {
		f.log.Warn("bad order payload", utils.Err(err))
		return
	}
	for i := range rows {
		f.onOrder(rows[i].toState())
	}
}

func (f *PrivateFeed) dispatchExecutions(data []byte) {
	if f.onExecution == nil {
		return
	}
	var rows []struct {
		OrderID   string `json:"orderId"`
		Symbol    string `json:"symbol"`
		Side      string `json:"side"`
		ExecQty   string `json:"execQty"`
		ExecPrice string `json:"execPrice"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		f.log.Warn("bad execution payload", utils.Err(err))
		return
	}
	for _, row := range rows {
		side := "buy"
		if row.Side == "Sell" {
			side = "sell"
		}
		qty, _ := strconv.ParseFloat(row.ExecQty, 64)
		price, _ := strconv.ParseFloat(row.ExecPrice, 64)
		f.onExecution(&ExecutionRecord{
			OrderID:   row.OrderID,
			Symbol:    row.Symbol,
			Side:      side,
			ExecQty:   qty,
			ExecPrice: price,
		})
	}
}
