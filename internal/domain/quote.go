package domain

import (
	"fmt"
	"math/big"
	"time"
)

// Quote es la propuesta de un venue para un swap concreto. Se crea fresca
// por request y nunca se muta después de construida — si los datos cambian,
// un Quote nuevo la reemplaza.
type Quote struct {
	ID             string // asignado por el aggregator al recibirla
	Venue          string
	TokenIn        Token
	TokenOut       Token
	AmountIn       *big.Int
	AmountOut      *big.Int // unidad mínima del token de salida, >= 0
	PriceImpactBps int      // 0 = sin estimación; no todos los venues lo reportan
	GasEstimate    uint64   // unidades de gas estimadas para ejecutar
	CostNative     *big.Int // coste de ejecución estimado en unidad mínima del token nativo
	Route          []RouteHop
	Confidence     float64 // 0–1, menor para venues que aproximan el routing
	CreatedAt      time.Time
}

// RouteHop es un tramo del path de swap. Pertenece en exclusiva al Quote
// que lo contiene.
type RouteHop struct {
	Venue     string // venue/pool que ejecuta el tramo
	TokenIn   Token
	TokenOut  Token
	AmountIn  *big.Int
	AmountOut *big.Int
	FeeBps    int
}

// Age devuelve la antigüedad del quote respecto a now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.CreatedAt)
}

// Fresh devuelve true si el quote sigue dentro de la ventana de frescura.
func (q Quote) Fresh(now time.Time, window time.Duration) bool {
	return q.Age(now) <= window
}

// Validate comprueba los invariantes estructurales del quote: output no
// negativo y tramos secuenciales consistentes (hop[i].out == hop[i+1].in).
func (q Quote) Validate() error {
	if q.AmountOut == nil || q.AmountOut.Sign() < 0 {
		return fmt.Errorf("quote %s: negative or missing output amount", q.Venue)
	}
	for i := 1; i < len(q.Route); i++ {
		prev, cur := q.Route[i-1], q.Route[i]
		if prev.AmountOut == nil || cur.AmountIn == nil {
			return fmt.Errorf("quote %s: hop %d missing amounts", q.Venue, i)
		}
		if prev.AmountOut.Cmp(cur.AmountIn) != 0 {
			return fmt.Errorf("quote %s: hop %d input %s does not match hop %d output %s",
				q.Venue, i, cur.AmountIn, i-1, prev.AmountOut)
		}
	}
	return nil
}

// MinAmountOut devuelve el mínimo output aceptable aplicando la tolerancia
// de slippage en basis points.
func (q Quote) MinAmountOut(slippageBps int) *big.Int {
	keep := big.NewInt(int64(10_000 - slippageBps))
	min := new(big.Int).Mul(q.AmountOut, keep)
	return min.Div(min, big.NewInt(10_000))
}
