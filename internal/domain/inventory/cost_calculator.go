package inventory

import "github.com/shopspring/decimal"

// CostCalculator costo promedio ponderado tras una reposición.
// NuevoCosto = ((SaldoActual * CostoActual) + (CantEntrada * CostoEntrada)) / (SaldoActual + CantEntrada)
// Un saldo negativo o cero no aporta peso: el nuevo costo es el de la entrada.
func CostCalculator(saldoActual, costoActual, cantEntrada, costoEntrada decimal.Decimal) decimal.Decimal {
	if saldoActual.IsNegative() {
		saldoActual = decimal.Zero
	}
	sum := saldoActual.Add(cantEntrada)
	if sum.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	num := saldoActual.Mul(costoActual).Add(cantEntrada.Mul(costoEntrada))
	return num.Div(sum)
}
