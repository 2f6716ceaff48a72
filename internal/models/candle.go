package models

import "time"

// Candle представляет одну свечу таймфрейма позиции
//
// Используется мостом стратегии: exit-цена берётся из Close текущей свечи,
// стратегии пересчитывают уровни по экстремумам.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}
