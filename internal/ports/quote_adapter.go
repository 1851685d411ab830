package ports

import (
	"context"

	"github.com/alejandrodnm/swaproute/internal/domain"
)

// QuoteAdapter es el contrato uniforme de un venue. Cada implementación
// traduce un SwapRequest genérico a la llamada de quote específica del
// venue y normaliza la respuesta y los errores a la taxonomía de domain.
//
// Los adapters NO reintentan internamente — la política de retry pertenece
// al wrapper de resiliencia que los envuelve.
type QuoteAdapter interface {
	// Venue devuelve el ID del venue que sirve este adapter.
	Venue() string

	// GetQuote pide un quote al venue. El contexto lleva el deadline duro
	// del wrapper; la llamada HTTP debe ser cancelable en vuelo.
	// Errores: domain.ErrUnsupported | ErrTimeout | ErrRateLimited | ErrUpstream.
	GetQuote(ctx context.Context, req domain.SwapRequest) (domain.Quote, error)
}
