package domain

import "math"

// indicators.go — señales técnicas escalares sobre la historia de velas.
//
// Todas las funciones devuelven el valor MÁS RECIENTE de la señal, no la
// serie completa: los agentes solo miran el último valor en cada ciclo.
// Todas guardan contra denominadores cero con fallbacks neutros
// (RSI=50, trend=0, volatility=0).

// RSIPeriod es el lookback por defecto del RSI.
const RSIPeriod = 14

// RSI calcula el Relative Strength Index (suavizado de Wilder) sobre los
// cierres. Devuelve 50 (neutro) si no hay ventana completa o si no hubo
// pérdidas ni ganancias.
func RSI(candles []Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 50
	}

	var gain, loss float64
	start := len(candles) - period - 1
	for i := start + 1; i <= start+period; i++ {
		d := candles[i].Close - candles[i-1].Close
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	// Wilder smoothing sobre el resto de la historia
	for i := start + period + 1; i < len(candles); i++ {
		d := candles[i].Close - candles[i-1].Close
		up, down := 0.0, 0.0
		if d > 0 {
			up = d
		} else {
			down = -d
		}
		avgGain = (avgGain*float64(period-1) + up) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + down) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Trend devuelve la pendiente relativa del precio sobre una ventana:
// (último - primero) / primero. Devuelve 0 sin ventana suficiente.
func Trend(candles []Candle, lookback int) float64 {
	if lookback <= 0 || len(candles) < lookback+1 {
		return 0
	}
	first := candles[len(candles)-lookback-1].Close
	last := candles[len(candles)-1].Close
	if first <= 0 {
		return 0
	}
	return (last - first) / first
}

// Volatility devuelve la desviación estándar de los retornos simples sobre
// la ventana. Devuelve 0 sin ventana suficiente.
func Volatility(candles []Candle, lookback int) float64 {
	if lookback <= 1 || len(candles) < lookback+1 {
		return 0
	}
	returns := make([]float64, 0, lookback)
	for i := len(candles) - lookback; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev <= 0 {
			continue
		}
		returns = append(returns, (candles[i].Close-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	return math.Sqrt(sq / float64(len(returns)))
}

// SMA devuelve la media móvil simple de los últimos n cierres.
// Devuelve el último cierre si no hay ventana completa (neutro razonable).
func SMA(candles []Candle, n int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if n <= 0 || len(candles) < n {
		return candles[len(candles)-1].Close
	}
	var sum float64
	for i := len(candles) - n; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(n)
}
