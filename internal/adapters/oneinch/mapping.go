package oneinch

import (
	"fmt"
	"math/big"
	"time"

	"github.com/alejandrodnm/swaproute/internal/domain"
)

// mapQuote convierte la respuesta raw a domain.Quote. El freshness
// timestamp se fija al momento de la llamada. La API no reporta price
// impact, así que PriceImpactBps queda en 0 ("sin estimación"); el
// Confidence del venue ya refleja que el routing es aproximado.
func mapQuote(venueID string, req domain.SwapRequest, resp quoteResponse, gasPriceWei *big.Int) (domain.Quote, error) {
	out, ok := new(big.Int).SetString(resp.DstAmount, 10)
	if !ok || out.Sign() < 0 {
		return domain.Quote{}, fmt.Errorf("%w: bad dstAmount %q", domain.ErrUpstream, resp.DstAmount)
	}

	q := domain.Quote{
		ID:          "", // lo asigna el aggregator
		Venue:       venueID,
		TokenIn:     req.TokenIn,
		TokenOut:    req.TokenOut,
		AmountIn:    new(big.Int).Set(req.AmountIn),
		AmountOut:   out,
		GasEstimate: resp.Gas,
		CostNative:  new(big.Int).Mul(new(big.Int).SetUint64(resp.Gas), gasPriceWei),
		Route:       mapRoute(req, out, resp.Protocols),
		Confidence:  confidence,
		CreatedAt:   time.Now(),
	}
	return q, nil
}

// mapRoute resume el routing del venue. La API reporta protocolos por hop
// pero no los amounts intermedios, así que el route se colapsa a un único
// hop agregado nombrando el protocolo dominante de la primera ruta.
func mapRoute(req domain.SwapRequest, out *big.Int, protocols [][][]protocolRaw) []domain.RouteHop {
	hop := domain.RouteHop{
		Venue:     dominantProtocol(protocols),
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		AmountIn:  new(big.Int).Set(req.AmountIn),
		AmountOut: new(big.Int).Set(out),
	}
	return []domain.RouteHop{hop}
}

// dominantProtocol devuelve el protocolo con mayor part del primer hop de
// la primera ruta, o "1inch" si el routing viene vacío.
func dominantProtocol(protocols [][][]protocolRaw) string {
	if len(protocols) == 0 || len(protocols[0]) == 0 || len(protocols[0][0]) == 0 {
		return "1inch"
	}
	best := protocols[0][0][0]
	for _, p := range protocols[0][0][1:] {
		if p.Part > best.Part {
			best = p
		}
	}
	return best.Name
}
