package ports

import (
	"context"

	"github.com/alejandrodnm/swaproute/internal/domain"
)

// PriceSource es el colaborador read-only de referencia de precios,
// alimentado por el componente externo de market data. El engine solo lo
// usa para convertir coste de ejecución a términos del token de salida y
// tolera que esté stale o caído (fallback "cost-unadjusted").
type PriceSource interface {
	// Price devuelve cuántas unidades enteras de quote vale una unidad
	// entera de base (p.ej. Price(ETH, USDC) ≈ 3000).
	Price(ctx context.Context, base, quote domain.Token) (float64, error)
}
