package domain

import "time"

// short.go — tipos y fórmulas puras del subsistema de cortos.
// El ciclo de vida (fees por ciclo, margin calls, forced cover) vive en
// engine/margin; aquí solo la aritmética cerrada.

// BorrowStatus clasifica la dificultad de pedir prestado un símbolo.
type BorrowStatus string

const (
	BorrowEasy BorrowStatus = "easy"
	BorrowHard BorrowStatus = "hard"
)

// HardToBorrowThreshold: shortInterest / float a partir del cual un símbolo
// se considera difícil de prestar.
const HardToBorrowThreshold = 0.5

// BorrowStatusFor devuelve el estado de préstamo de un símbolo.
// Float cero o desconocido se trata como máxima escasez: "hard".
func BorrowStatusFor(shortInterest, floatShares float64) BorrowStatus {
	if floatShares <= 0 {
		return BorrowHard
	}
	if shortInterest/floatShares >= HardToBorrowThreshold {
		return BorrowHard
	}
	return BorrowEasy
}

// ShortPosition is one open short: created on open, mutated on average-in,
// partial close, fee charge and margin-call bookkeeping, destroyed on full
// close. The margin-call flag is orthogonal to the open/closed lifecycle.
type ShortPosition struct {
	ID               string
	Symbol           string
	Shares           int     // > 0 while open
	EntryPrice       float64 // volume-weighted across averaging-in events
	OpenedAt         time.Time
	CollateralLocked float64
	FeesPaid         float64 // cumulative borrow fees
	MarginCall       bool
	GraceCyclesLeft  int
	ForcedCover      bool
}

// UnrealizedPL devuelve (entry − current) × shares: positivo si el precio cayó.
func (p ShortPosition) UnrealizedPL(currentPrice float64) float64 {
	return (p.EntryPrice - currentPrice) * float64(p.Shares)
}

// EffectiveCollateral = colateral bloqueado + P/L no realizado.
func (p ShortPosition) EffectiveCollateral(currentPrice float64) float64 {
	return p.CollateralLocked + p.UnrealizedPL(currentPrice)
}

// PositionValue = shares × precio actual.
func (p ShortPosition) PositionValue(currentPrice float64) float64 {
	return float64(p.Shares) * currentPrice
}

// RequiredInitialMargin = shares × price × initialMarginPercent.
func RequiredInitialMargin(shares int, price, initialMarginPercent float64) float64 {
	return float64(shares) * price * initialMarginPercent
}

// RequiredMaintenance = positionValue × maintenanceMarginPercent.
func RequiredMaintenance(positionValue, maintenanceMarginPercent float64) float64 {
	return positionValue * maintenanceMarginPercent
}

// UnderMaintenance reporta si la posición está bajo mantenimiento al precio
// dado. La igualdad exacta NO dispara margin call.
func (p ShortPosition) UnderMaintenance(currentPrice, maintenanceMarginPercent float64) bool {
	required := RequiredMaintenance(p.PositionValue(currentPrice), maintenanceMarginPercent)
	return p.EffectiveCollateral(currentPrice) < required
}

// AverageIn devuelve la posición tras promediar `shares` adicionales a
// `price`, con entry ponderado por volumen y colateral extra bloqueado.
func (p ShortPosition) AverageIn(shares int, price, extraCollateral float64) ShortPosition {
	total := p.Shares + shares
	p.EntryPrice = (float64(p.Shares)*p.EntryPrice + float64(shares)*price) / float64(total)
	p.Shares = total
	p.CollateralLocked += extraCollateral
	return p
}

// ReleaseForClose devuelve la posición tras cerrar `shares` y el colateral
// liberado, proporcional a la fracción cerrada. Cerrar todo deja Shares en 0;
// el caller destruye la posición.
func (p ShortPosition) ReleaseForClose(shares int) (ShortPosition, float64) {
	if shares <= 0 || shares > p.Shares {
		return p, 0
	}
	released := p.CollateralLocked * float64(shares) / float64(p.Shares)
	p.CollateralLocked -= released
	p.Shares -= shares
	return p, released
}
