package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tradebot/pkg/ratelimit"
	"tradebot/pkg/retry"
	"tradebot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	bybitRecvWindow = "5000"
	bybitCategory   = "linear"
)

// Bybit - клиент REST API v5, реализует Executor и Lister
//
// Все запросы идут через общий token-bucket limiter. Транспортные
// ошибки повторяются с backoff; отказ биржи (retCode != 0)
// возвращается сразу - решение о повторе принимает вызывающий.
type Bybit struct {
	apiKey    string
	secretKey string
	baseURL   string

	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	log        *utils.Logger

	// retry-профили: обычные действия и закрытие позиций
	normalRetry   retry.Config
	criticalRetry retry.Config
}

// BybitConfig - параметры клиента
type BybitConfig struct {
	APIKey             string
	APISecret          string
	BaseURL            string // пусто = боевой api.bybit.com
	RateLimitPerSecond int
	MaxRetries         int
	RetryBackoff       time.Duration
}

// NewBybit создаёт клиент
func NewBybit(cfg BybitConfig, logger *utils.Logger) *Bybit {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.bybit.com"
	}
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}

	normal := retry.DefaultConfig()
	critical := retry.AggressiveConfig()
	if cfg.MaxRetries > 0 {
		normal.MaxRetries = cfg.MaxRetries
		critical.MaxRetries = cfg.MaxRetries + 2
	}
	if cfg.RetryBackoff > 0 {
		normal.InitialDelay = cfg.RetryBackoff
		critical.InitialDelay = cfg.RetryBackoff / 2
	}
	// Бизнес-отказ биржи не повторяем: состояние на бирже могло
	// измениться, слепой повтор опасен
	notBusiness := func(err error) bool {
		var ee *ExchangeError
		return !errors.As(err, &ee)
	}
	normal.RetryIf = notBusiness
	critical.RetryIf = notBusiness

	return &Bybit{
		apiKey:        cfg.APIKey,
		secretKey:     cfg.APISecret,
		baseURL:       cfg.BaseURL,
		httpClient:    GetGlobalHTTPClient().GetClient(),
		limiter:       ratelimit.NewRateLimiter(float64(cfg.RateLimitPerSecond), float64(cfg.RateLimitPerSecond)*2),
		log:           logger.WithExchange("bybit"),
		normalRetry:   normal,
		criticalRetry: critical,
	}
}

// sign создаёт подпись запроса по схеме Bybit API v5
func (b *Bybit) sign(timestamp, payload string) string {
	h := hmac.New(sha256.New, []byte(b.secretKey))
	h.Write([]byte(timestamp + b.apiKey + bybitRecvWindow + payload))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет один подписанный запрос (без повторов)
func (b *Bybit) doRequest(ctx context.Context, method, endpoint string, params map[string]string) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody, signPayload, reqURL string
	if method == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		signPayload = query.Encode()
		reqURL = b.baseURL + endpoint
		if signPayload != "" {
			reqURL += "?" + signPayload
		}
	} else {
		reqURL = b.baseURL + endpoint
		if len(params) > 0 {
			jsonBytes, err := json.Marshal(params)
			if err != nil {
				return nil, err
			}
			reqBody = string(jsonBytes)
		}
		signPayload = reqBody
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BAPI-API-KEY", b.apiKey)
	req.Header.Set("X-BAPI-SIGN", b.sign(timestamp, signPayload))
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", bybitRecvWindow)

	started := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	b.log.Debug("bybit request",
		utils.String("endpoint", endpoint),
		utils.Int("status", resp.StatusCode),
		utils.Latency(float64(time.Since(started).Milliseconds())),
	)

	var baseResp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, err
	}
	if baseResp.RetCode != 0 {
		return nil, &ExchangeError{
			Exchange: "bybit",
			Code:     strconv.Itoa(baseResp.RetCode),
			Message:  baseResp.RetMsg,
		}
	}

	return body, nil
}

// ============================================================
// Executor
// ============================================================

// SetTradingStop выставляет стоп и/или тейк-профит позиции.
// Нулевое значение параметра не отправляется (уровень не меняется).
func (b *Bybit) SetTradingStop(ctx context.Context, symbol string, stopLoss, takeProfit float64) error {
	params := map[string]string{
		"category":    bybitCategory,
		"symbol":      symbol,
		"positionIdx": "0", // one-way mode
	}
	if stopLoss != 0 {
		params["stopLoss"] = strconv.FormatFloat(stopLoss, 'f', -1, 64)
	}
	if takeProfit != 0 {
		params["takeProfit"] = strconv.FormatFloat(takeProfit, 'f', -1, 64)
	}

	return retry.Do(ctx, func() error {
		_, err := b.doRequest(ctx, http.MethodPost, "/v5/position/trading-stop", params)
		return err
	}, b.normalRetry)
}

// CancelOrder отменяет активный ордер
func (b *Bybit) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]string{
		"category": bybitCategory,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	return retry.Do(ctx, func() error {
		_, err := b.doRequest(ctx, http.MethodPost, "/v5/order/cancel", params)
		return err
	}, b.normalRetry)
}

// ClosePosition закрывает позицию по рынку reduce-only ордером.
// Сторона и размер берутся из текущего состояния на бирже.
func (b *Bybit) ClosePosition(ctx context.Context, symbol string) error {
	pos, err := b.getPosition(ctx, symbol)
	if err != nil {
		return fmt.Errorf("close %s: %w", symbol, err)
	}
	if pos == nil || pos.Size == 0 {
		// Уже плоская - цель достигнута
		b.log.Info("position already flat", utils.Symbol(symbol))
		return nil
	}

	closeSide := "Sell"
	if pos.Side == "short" {
		closeSide = "Buy"
	}

	params := map[string]string{
		"category":    bybitCategory,
		"symbol":      symbol,
		"side":        closeSide,
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(pos.Size, 'f', -1, 64),
		"timeInForce": "IOC",
		"reduceOnly":  "true",
		"positionIdx": "0",
	}

	return retry.Do(ctx, func() error {
		_, err := b.doRequest(ctx, http.MethodPost, "/v5/order/create", params)
		return err
	}, b.criticalRetry)
}

// ============================================================
// Lister
// ============================================================

type bybitPosition struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"` // Buy, Sell, пусто
	Size       string `json:"size"`
	AvgPrice   string `json:"avgPrice"`   // REST
	EntryPrice string `json:"entryPrice"` // приватный WS-фид
	MarkPrice  string `json:"markPrice"`
	StopLoss   string `json:"stopLoss"`
	TakeProfit string `json:"takeProfit"`
}

func (p *bybitPosition) toState() *PositionState {
	size, _ := strconv.ParseFloat(p.Size, 64)
	entry, _ := strconv.ParseFloat(p.AvgPrice, 64)
	if entry == 0 {
		entry, _ = strconv.ParseFloat(p.EntryPrice, 64)
	}
	mark, _ := strconv.ParseFloat(p.MarkPrice, 64)
	sl, _ := strconv.ParseFloat(p.StopLoss, 64)
	tp, _ := strconv.ParseFloat(p.TakeProfit, 64)

	side := ""
	switch p.Side {
	case "Buy":
		side = "long"
	case "Sell":
		side = "short"
	}

	return &PositionState{
		Symbol:     p.Symbol,
		Size:       size,
		Side:       side,
		EntryPrice: entry,
		StopLoss:   sl,
		TakeProfit: tp,
		MarkPrice:  mark,
	}
}

// ListPositions возвращает все открытые позиции аккаунта
func (b *Bybit) ListPositions(ctx context.Context) ([]*PositionState, error) {
	params := map[string]string{
		"category":   bybitCategory,
		"settleCoin": "USDT",
	}

	body, err := retry.DoWithResult(ctx, func() ([]byte, error) {
		return b.doRequest(ctx, http.MethodGet, "/v5/position/list", params)
	}, b.normalRetry)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []bybitPosition `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]*PositionState, 0, len(resp.Result.List))
	for i := range resp.Result.List {
		st := resp.Result.List[i].toState()
		if st.Size == 0 {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// getPosition возвращает позицию одного символа (nil если плоская)
func (b *Bybit) getPosition(ctx context.Context, symbol string) (*PositionState, error) {
	params := map[string]string{
		"category": bybitCategory,
		"symbol":   symbol,
	}

	body, err := retry.DoWithResult(ctx, func() ([]byte, error) {
		return b.doRequest(ctx, http.MethodGet, "/v5/position/list", params)
	}, b.normalRetry)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []bybitPosition `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Result.List {
		st := resp.Result.List[i].toState()
		if st.Size != 0 {
			return st, nil
		}
	}
	return nil, nil
}

type bybitOrder struct {
	OrderID     string `json:"orderId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderStatus string `json:"orderStatus"`
	CreatedTime string `json:"createdTime"` // unix millis строкой
}

func (o *bybitOrder) toState() *OrderState {
	side := "buy"
	if o.Side == "Sell" {
		side = "sell"
	}

	st := &OrderState{
		OrderID: o.OrderID,
		Symbol:  o.Symbol,
		Side:    side,
		Status:  o.OrderStatus,
	}
	if millis, err := strconv.ParseInt(o.CreatedTime, 10, 64); err == nil && millis > 0 {
		st.CreatedTime = utils.FromUnixMillis(millis)
	}
	return st
}

// ListOpenOrders возвращает все активные ордера аккаунта
func (b *Bybit) ListOpenOrders(ctx context.Context) ([]*OrderState, error) {
	params := map[string]string{
		"category":   bybitCategory,
		"settleCoin": "USDT",
		"openOnly":   "0",
	}

	body, err := retry.DoWithResult(ctx, func() ([]byte, error) {
		return b.doRequest(ctx, http.MethodGet, "/v5/order/realtime", params)
	}, b.normalRetry)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []bybitOrder `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]*OrderState, 0, len(resp.Result.List))
	for i := range resp.Result.List {
		out = append(out, resp.Result.List[i].toState())
	}
	return out, nil
}

// Ping проверяет ключи и доступность API
func (b *Bybit) Ping(ctx context.Context) error {
	_, err := b.ListPositions(ctx)
	return err
}
