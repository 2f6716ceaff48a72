package utils

import (
	"math"
)

// math.go - математика стопов и риска
//
// Чистые функции без побочных эффектов. Все расчёты side-aware:
// для лонга "лучше" значит выше, для шорта - ниже.

// RiskPerUnit возвращает изначальный риск на единицу объёма
//
// Формула:
//
//	risk = |entry - original_sl|
//
// Риск считается от НЕИЗМЕННОГО изначального стопа, не от текущего.
func RiskPerUnit(entryPrice, originalSL float64) float64 {
	return math.Abs(entryPrice - originalSL)
}

// SignedProfit возвращает знаковую прибыль на единицу объёма
//
// Лонг: mark - entry. Шорт: entry - mark. Отрицательное значение -
// позиция в минусе.
func SignedProfit(side string, entryPrice, markPrice float64) float64 {
	if side == "short" {
		return entryPrice - markPrice
	}
	return markPrice - entryPrice
}

// RRMultiple возвращает текущий RR позиции
//
// Формула:
//
//	RR = прибыль / риск
//
// 1.0 = прибыль равна изначальному риску. Если риск нулевой,
// возвращает 0 (расчёт не имеет смысла).
func RRMultiple(side string, entryPrice, originalSL, markPrice float64) float64 {
	risk := RiskPerUnit(entryPrice, originalSL)
	if risk == 0 {
		return 0
	}
	return SignedProfit(side, entryPrice, markPrice) / risk
}

// IsStopImprovement проверяет, СТРОГО ли лучше кандидат текущего стопа
//
// Лонг: выше = лучше. Шорт: ниже = лучше. Равный стоп улучшением
// не считается - стоп двигается только в выгодную сторону.
func IsStopImprovement(side string, candidate, currentSL float64) bool {
	if currentSL == 0 {
		return candidate != 0
	}
	if side == "short" {
		return candidate < currentSL
	}
	return candidate > currentSL
}

// StepStopPrice возвращает целевой стоп для ступени лестницы
//
// slPosition задаётся в единицах RR от входа:
//
//	лонг:  entry + risk × slPosition
//	шорт:  entry - risk × slPosition
//
// slPosition = 0 означает перенос в безубыток.
func StepStopPrice(side string, entryPrice, risk, slPosition float64) float64 {
	if side == "short" {
		return entryPrice - risk*slPosition
	}
	return entryPrice + risk*slPosition
}

// TrailingStopPrice возвращает trailing-стоп с отступом от текущей цены
//
//	лонг:  mark - mark × trailingPct/100
//	шорт:  mark + mark × trailingPct/100
func TrailingStopPrice(side string, markPrice, trailingPct float64) float64 {
	offset := markPrice * trailingPct / 100
	if side == "short" {
		return markPrice + offset
	}
	return markPrice - offset
}

// AgeTightenedStopPrice возвращает стоп, сдвинутый от изначального к входу
//
// maxTighteningPct - доля риска (в процентах), на которую стоп
// приближается к входу. 100% = стоп на самом входе; дальше входа
// стоп не заходит.
//
//	лонг:  original_sl + risk × pct/100
//	шорт:  original_sl - risk × pct/100
func AgeTightenedStopPrice(side string, originalSL, risk, maxTighteningPct float64) float64 {
	shift := risk * maxTighteningPct / 100
	if side == "short" {
		return originalSL - shift
	}
	return originalSL + shift
}

// RemainingToTPPct возвращает остаток пути до тейк-профита в процентах
//
// Формула:
//
//	remaining = расстояние от mark до TP (side-aware)
//	total     = расстояние от entry до TP
//	pct       = remaining / total × 100
//
// Второе возвращаемое значение false, если расчёт не имеет смысла
// (TP не задан или находится не по ту сторону от входа).
func RemainingToTPPct(side string, entryPrice, takeProfit, markPrice float64) (float64, bool) {
	var remaining, total float64
	if side == "short" {
		remaining = markPrice - takeProfit
		total = entryPrice - takeProfit
	} else {
		remaining = takeProfit - markPrice
		total = takeProfit - entryPrice
	}

	if total <= 0 {
		return 0, false
	}
	return remaining / total * 100, true
}

// CalculatePNL расчитывает прибыль/убыток по позиции
//
// Формулы:
//   - Long PNL = (P_close - P_open) × qty
//   - Short PNL = (P_open - P_close) × qty
func CalculatePNL(side string, entryPrice, currentPrice, quantity float64) float64 {
	if quantity <= 0 {
		return 0
	}

	switch side {
	case "long":
		return (currentPrice - entryPrice) * quantity
	case "short":
		return (entryPrice - currentPrice) * quantity
	default:
		return 0
	}
}

// RoundToTickSize округляет цену к ближайшему кратному tickSize
//
// Используется перед отправкой стопа на биржу. Если tickSize <= 0,
// возвращает исходное значение.
//
// Примеры:
//   - RoundToTickSize(112.004, 0.01) = 112.0
//   - RoundToTickSize(193.056, 0.01) = 193.06
func RoundToTickSize(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	return math.Round(price/tickSize) * tickSize
}

// Abs возвращает абсолютное значение числа.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Min возвращает минимум из двух чисел.
func Min(a, b float64) float64 {
	return math.Min(a, b)
}

// Max возвращает максимум из двух чисел.
func Max(a, b float64) float64 {
	return math.Max(a, b)
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
