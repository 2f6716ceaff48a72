package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Token bucket для REST-вызовов биржи: ведро наполняется с постоянной
// скоростью rate токенов/сек до ёмкости burst, каждый запрос потребляет
// один токен. Burst выше rate пропускает короткие всплески (пакет ордеров),
// не превышая лимит биржи на длинной дистанции.

// RateLimiter ограничивает частоту исходящих запросов
type RateLimiter struct {
	mu         sync.Mutex
	rate       float64 // токенов в секунду
	burst      float64 // ёмкость ведра
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter создаёт limiter на rate запросов в секунду с ёмкостью burst.
// Неположительные параметры заменяются значениями по умолчанию
// (10 req/sec, burst = 2x rate); burst не может быть меньше rate.
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = rate * 2
	}
	if burst < rate {
		burst = rate
	}
	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst, // стартуем с полным ведром
		lastRefill: time.Now(),
	}
}

// refill доначисляет токены за прошедшее время. Вызывается под mu.
func (rl *RateLimiter) refill() {
	now := time.Now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastRefill = now
}

// Wait блокирует до получения токена или отмены контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()
		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
