package domain

import "math/big"

// RankedQuote es un Quote con su net output derivado, listo para ordenar.
// NetOutput = output × (1 − platform fee) − coste de ejecución en términos
// del token de salida. Si no hubo referencia de precio para convertir el
// coste, CostAdjusted es false y NetOutput es solo output tras fee — el
// caller debe ponderarlo en consecuencia.
type RankedQuote struct {
	Quote        Quote
	NetOutput    *big.Int
	CostAdjusted bool
}
