package domain

// pricing.go — modelo de ejecución para órdenes del jugador.
//
// Los agentes autónomos NO pasan por aquí: sus trades usan el impacto
// simplificado del modelo de precios (ver engine/market). Este modelo aplica
// spread + slippage progresivo + fees, parametrizado por modo de juego.

// ExecutionParams son los parámetros de un modo de ejecución.
type ExecutionParams struct {
	SpreadPercent    float64 // spread total; cada lado paga la mitad
	SlippagePerShare float64 // incremento de slippage por acción (fracción del precio)
	MaxSlippage      float64 // tope: fracción del precio, por acción
	FeePercent       float64 // fee sobre el subtotal
	MinFee           float64 // fee mínimo absoluto
}

// Quote es el desglose de una orden valorada con el modelo de ejecución.
type Quote struct {
	BasePrice      float64
	Shares         int
	Side           Side
	SpreadCost     float64 // total, con signo direccional
	SlippageCost   float64 // total, con signo direccional
	EffectivePrice float64 // por acción
	Subtotal       float64
	Fee            float64
	Total          float64 // buy: subtotal + fee; sell: subtotal - fee
}

// PriceOrder valora una orden de `shares` acciones al precio base `price`.
//
// Fórmulas:
//
//	spreadCost   = price × (spreadPercent/2) × shares × dir
//	slippageCost = min(price × slipPerShare × shares(shares+1)/2,
//	               maxSlippage × price × shares) × dir
//	effective    = price + (spreadCost + slippageCost) / shares
//	fee          = max(subtotal × feePercent, minFee)
//
// dir = +1 compra / −1 venta. Con shares <= 0 devuelve un Quote vacío.
func PriceOrder(price float64, shares int, side Side, p ExecutionParams) Quote {
	if shares <= 0 || price <= 0 {
		return Quote{BasePrice: price, Side: side}
	}

	dir := 1.0
	if side == SideSell {
		dir = -1.0
	}

	n := float64(shares)
	spreadCost := price * (p.SpreadPercent / 2) * n * dir

	// Slippage progresivo: el coste marginal crece con cada acción.
	raw := price * p.SlippagePerShare * n * (n + 1) / 2
	maxSlip := p.MaxSlippage * price * n
	if raw > maxSlip {
		raw = maxSlip
	}
	slippageCost := raw * dir

	effective := price + (spreadCost+slippageCost)/n
	subtotal := effective * n

	fee := subtotal * p.FeePercent
	if fee < p.MinFee {
		fee = p.MinFee
	}

	total := subtotal + fee
	if side == SideSell {
		total = subtotal - fee
	}

	return Quote{
		BasePrice:      price,
		Shares:         shares,
		Side:           side,
		SpreadCost:     spreadCost,
		SlippageCost:   slippageCost,
		EffectivePrice: effective,
		Subtotal:       subtotal,
		Fee:            fee,
		Total:          total,
	}
}
