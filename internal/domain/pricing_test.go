package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var standardParams = ExecutionParams{
	SpreadPercent:    0.004,
	SlippagePerShare: 0.00001,
	MaxSlippage:      0.005,
	FeePercent:       0.001,
	MinFee:           1.0,
}

func TestPriceOrder_Buy(t *testing.T) {
	// price=100, shares=10:
	// spread   = 100 × 0.002 × 10 = 2.00
	// slippage = 100 × 0.00001 × 10×11/2 = 0.055 (cap 5.0 no aplica)
	// effective = 100 + 2.055/10 = 100.2055
	// subtotal  = 1002.055; fee = 1.002055; total = 1003.057
	q := PriceOrder(100, 10, SideBuy, standardParams)
	assert.InDelta(t, 2.0, q.SpreadCost, 0.0001)
	assert.InDelta(t, 0.055, q.SlippageCost, 0.0001)
	assert.InDelta(t, 100.2055, q.EffectivePrice, 0.0001)
	assert.InDelta(t, 1002.055, q.Subtotal, 0.001)
	assert.InDelta(t, 1.002055, q.Fee, 0.0001)
	assert.InDelta(t, 1003.057, q.Total, 0.001)
}

func TestPriceOrder_SellMirrorsCosts(t *testing.T) {
	// Vendiendo los costes van en contra: effective < base y el fee se resta.
	q := PriceOrder(100, 10, SideSell, standardParams)
	assert.InDelta(t, -2.0, q.SpreadCost, 0.0001)
	assert.InDelta(t, -0.055, q.SlippageCost, 0.0001)
	assert.InDelta(t, 99.7945, q.EffectivePrice, 0.0001)
	// fee proporcional 0.998 < minFee → aplica el mínimo de 1.0
	assert.Equal(t, 1.0, q.Fee)
	assert.InDelta(t, 996.945, q.Total, 0.001)
}

func TestPriceOrder_SlippageCapped(t *testing.T) {
	// shares=2000: raw = 100 × 0.00001 × 2000×2001/2 = 2001
	// cap = 0.005 × 100 × 2000 = 1000 → gana el cap
	q := PriceOrder(100, 2000, SideBuy, standardParams)
	assert.InDelta(t, 1000.0, q.SlippageCost, 0.001)
}

func TestPriceOrder_MinFeeFloor(t *testing.T) {
	// Orden pequeña: subtotal ≈ 10.02, fee proporcional ≈ 0.01 → mínimo 1.0
	q := PriceOrder(10, 1, SideBuy, standardParams)
	assert.Equal(t, 1.0, q.Fee)
	assert.Greater(t, q.Total, 11.0)
}

func TestPriceOrder_InvalidShares(t *testing.T) {
	q := PriceOrder(100, 0, SideBuy, standardParams)
	assert.Equal(t, 0.0, q.Total)
	assert.Equal(t, 0, q.Shares)

	q = PriceOrder(0, 10, SideSell, standardParams)
	assert.Equal(t, 0.0, q.Total)
}

func TestPriceOrder_BuyCostsMoreThanSellReturns(t *testing.T) {
	buy := PriceOrder(50, 25, SideBuy, standardParams)
	sell := PriceOrder(50, 25, SideSell, standardParams)
	assert.Greater(t, buy.Total, sell.Total)
	assert.Greater(t, buy.EffectivePrice, 50.0)
	assert.Less(t, sell.EffectivePrice, 50.0)
}

func TestSide_Dir(t *testing.T) {
	assert.Equal(t, 1.0, SideBuy.Dir())
	assert.Equal(t, -1.0, SideSell.Dir())
}
