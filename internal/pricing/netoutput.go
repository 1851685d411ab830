// Package pricing deriva el net output comparable de cada quote:
// output × (1 − platform fee) − coste de ejecución en términos del token
// de salida. Función pura, sin llamadas de red: la referencia de precio
// llega ya resuelta (o ausente) desde el caller.
package pricing

import (
	"math/big"

	"github.com/alejandrodnm/swaproute/internal/domain"
)

// CostReference es el precio ya resuelto del token nativo de la chain en
// términos del token de salida del quote. Available=false activa el
// fallback "cost-unadjusted" (ranking por output bruto tras fee).
type CostReference struct {
	NativeToken domain.Token
	Price       float64 // unidades enteras de token de salida por unidad entera de nativo
	Available   bool
}

// Evaluate calcula el RankedQuote de un quote con el platform fee dado en
// basis points. Determinista y sin efectos — testeable aislada de la red.
func Evaluate(q domain.Quote, platformFeeBps int, ref CostReference) domain.RankedQuote {
	afterFee := applyFee(q.AmountOut, platformFeeBps)

	if !ref.Available || q.CostNative == nil || q.CostNative.Sign() == 0 {
		return domain.RankedQuote{Quote: q, NetOutput: afterFee, CostAdjusted: ref.Available && costIsZero(q)}
	}

	cost := costInOutputTerms(q.CostNative, ref, q.TokenOut)
	net := new(big.Int).Sub(afterFee, cost)
	return domain.RankedQuote{Quote: q, NetOutput: net, CostAdjusted: true}
}

// applyFee devuelve amount × (10000 − feeBps) / 10000.
func applyFee(amount *big.Int, feeBps int) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	if feeBps <= 0 {
		return new(big.Int).Set(amount)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(10_000-feeBps)))
	return out.Div(out, big.NewInt(10_000))
}

// costInOutputTerms convierte el coste en unidad mínima del token nativo a
// unidad mínima del token de salida usando el precio de referencia:
//
//	costOut = costNative / 10^natDec × price × 10^outDec
//
// La aritmética intermedia usa big.Float para no perder precisión con
// decimales dispares (18 del nativo vs 6 de un stable, p.ej.).
func costInOutputTerms(costNative *big.Int, ref CostReference, out domain.Token) *big.Int {
	cost := new(big.Float).SetInt(costNative)
	cost.Quo(cost, new(big.Float).SetInt(ref.NativeToken.Units()))
	cost.Mul(cost, big.NewFloat(ref.Price))
	cost.Mul(cost, new(big.Float).SetInt(out.Units()))

	result, _ := cost.Int(nil)
	return result
}

// costIsZero: un quote sin coste estimado sigue siendo cost-adjusted si la
// referencia existía — no hay nada que restar.
func costIsZero(q domain.Quote) bool {
	return q.CostNative == nil || q.CostNative.Sign() == 0
}

// Less define el orden de ranking entre dos RankedQuotes: net output
// descendente; empate por confidence descendente; empate por coste de
// ejecución ascendente.
func Less(a, b domain.RankedQuote) bool {
	if c := a.NetOutput.Cmp(b.NetOutput); c != 0 {
		return c > 0
	}
	if a.Quote.Confidence != b.Quote.Confidence {
		return a.Quote.Confidence > b.Quote.Confidence
	}
	return cmpCost(a.Quote, b.Quote) < 0
}

func cmpCost(a, b domain.Quote) int {
	switch {
	case a.CostNative == nil && b.CostNative == nil:
		return 0
	case a.CostNative == nil:
		return -1
	case b.CostNative == nil:
		return 1
	}
	return a.CostNative.Cmp(b.CostNative)
}
