package utils

import (
	"time"
)

// time.go - утилиты таймфреймов и возраста
//
// Таймфреймы именуются по нотации Bybit: минуты числом ("1", "5",
// "60", "240"), "D" - день, "W" - неделя, "M" - месяц.

// ============================================================
// Таймфреймы
// ============================================================

// секунды в одном баре для нечисловых таймфреймов
const (
	secondsPerDay   = 86400
	secondsPerWeek  = 7 * secondsPerDay
	secondsPerMonth = 30 * secondsPerDay
)

// TimeframeSeconds возвращает длительность одного бара в секундах
//
// Неизвестный таймфрейм трактуется как 0 (вызывающий обязан
// проверить значение перед делением).
func TimeframeSeconds(timeframe string) int {
	switch timeframe {
	case "D", "d":
		return secondsPerDay
	case "W", "w":
		return secondsPerWeek
	case "M":
		return secondsPerMonth
	}

	minutes := 0
	for _, r := range timeframe {
		if r < '0' || r > '9' {
			return 0
		}
		minutes = minutes*10 + int(r-'0')
	}
	return minutes * 60
}

// TimeframeDuration возвращает длительность одного бара
func TimeframeDuration(timeframe string) time.Duration {
	return time.Duration(TimeframeSeconds(timeframe)) * time.Second
}

// AgeInBars возвращает возраст в барах указанного таймфрейма
//
// Возраст считается от since до now по wall-clock. Если таймфрейм
// неизвестен, возвращает 0.
func AgeInBars(since, now time.Time, timeframe string) float64 {
	barSeconds := TimeframeSeconds(timeframe)
	if barSeconds <= 0 {
		return 0
	}
	elapsed := now.Sub(since).Seconds()
	if elapsed < 0 {
		return 0
	}
	return elapsed / float64(barSeconds)
}

// AgeInSeconds возвращает возраст в секундах (не меньше нуля)
func AgeInSeconds(since, now time.Time) float64 {
	elapsed := now.Sub(since).Seconds()
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// ============================================================
// Форматирование и timestamp
// ============================================================

// FormatDuration форматирует продолжительность в человекочитаемый формат
//
// Примеры: "45s", "5m30s", "2h15m"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return (time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute).String()
	}
	if minutes > 0 {
		return (time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second).String()
	}
	return (time.Duration(seconds) * time.Second).String()
}

// UnixMillis возвращает текущее время в миллисекундах Unix
func UnixMillis() int64 {
	return time.Now().UnixMilli()
}

// FromUnixMillis конвертирует миллисекунды Unix в time.Time (UTC)
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ToUTC конвертирует время в UTC
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}
