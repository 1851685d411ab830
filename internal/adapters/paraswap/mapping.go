package paraswap

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/alejandrodnm/swaproute/internal/domain"
)

// DTOs raw de la API.

type pricesResponse struct {
	PriceRoute priceRoute `json:"priceRoute"`
}

type priceRoute struct {
	DestAmount string     `json:"destAmount"`
	SrcUSD     string     `json:"srcUSD"`  // valoración USD del input
	DestUSD    string     `json:"destUSD"` // valoración USD del output
	GasCost    string     `json:"gasCost"` // unidades de gas estimadas
	BestRoute  []routeRaw `json:"bestRoute"`
}

type routeRaw struct {
	Percent float64   `json:"percent"`
	Swaps   []swapRaw `json:"swaps"`
}

// swapRaw es un tramo del path: srcToken → destToken a través de uno o más
// exchanges en split.
type swapRaw struct {
	SrcToken      string        `json:"srcToken"`
	SrcDecimals   int           `json:"srcDecimals"`
	DestToken     string        `json:"destToken"`
	DestDecimals  int           `json:"destDecimals"`
	SwapExchanges []exchangeRaw `json:"swapExchanges"`
}

type exchangeRaw struct {
	Exchange   string  `json:"exchange"`
	Percent    float64 `json:"percent"`
	SrcAmount  string  `json:"srcAmount"`
	DestAmount string  `json:"destAmount"`
}

// mapPriceRoute convierte el priceRoute raw a domain.Quote preservando los
// tramos intermedios de la primera ruta.
func mapPriceRoute(venueID string, req domain.SwapRequest, pr priceRoute, gasPriceWei *big.Int) (domain.Quote, error) {
	out, ok := new(big.Int).SetString(pr.DestAmount, 10)
	if !ok || out.Sign() < 0 {
		return domain.Quote{}, fmt.Errorf("%w: bad destAmount %q", domain.ErrUpstream, pr.DestAmount)
	}

	gas, _ := new(big.Int).SetString(pr.GasCost, 10)
	if gas == nil {
		gas = big.NewInt(0)
	}

	route, err := mapHops(req, pr.BestRoute)
	if err != nil {
		return domain.Quote{}, err
	}

	return domain.Quote{
		Venue:          venueID,
		TokenIn:        req.TokenIn,
		TokenOut:       req.TokenOut,
		AmountIn:       new(big.Int).Set(req.AmountIn),
		AmountOut:      out,
		PriceImpactBps: impactBps(pr.SrcUSD, pr.DestUSD),
		GasEstimate:    gas.Uint64(),
		CostNative:     new(big.Int).Mul(gas, gasPriceWei),
		Route:          route,
		Confidence:     confidence,
		CreatedAt:      time.Now(),
	}, nil
}

// impactBps estima el price impact desde las valoraciones USD del priceRoute:
// (1 − destUSD/srcUSD) en basis points. Sin valoraciones utilizables devuelve
// 0, que aguas abajo se trata como "sin estimación".
func impactBps(srcUSD, destUSD string) int {
	src, errSrc := strconv.ParseFloat(srcUSD, 64)
	dst, errDst := strconv.ParseFloat(destUSD, 64)
	if errSrc != nil || errDst != nil || src <= 0 || dst <= 0 || dst >= src {
		return 0
	}
	return int(math.Round((1 - dst/src) * 10_000))
}

// mapHops construye los RouteHops secuenciales de la primera ruta. Cada
// swap agrega sus splits: amounts sumados, exchange dominante como venue
// del tramo.
func mapHops(req domain.SwapRequest, routes []routeRaw) ([]domain.RouteHop, error) {
	if len(routes) == 0 {
		return nil, nil
	}

	hops := make([]domain.RouteHop, 0, len(routes[0].Swaps))
	for _, swap := range routes[0].Swaps {
		in, out, exchange, err := sumExchanges(swap.SwapExchanges)
		if err != nil {
			return nil, err
		}
		hops = append(hops, domain.RouteHop{
			Venue:     exchange,
			TokenIn:   hopToken(req, swap.SrcToken, swap.SrcDecimals),
			TokenOut:  hopToken(req, swap.DestToken, swap.DestDecimals),
			AmountIn:  in,
			AmountOut: out,
		})
	}
	return hops, nil
}

// sumExchanges suma los amounts de los splits de un swap y devuelve el
// exchange con mayor porcentaje.
func sumExchanges(exchanges []exchangeRaw) (in, out *big.Int, dominant string, err error) {
	in, out = big.NewInt(0), big.NewInt(0)
	bestPct := -1.0

	for _, ex := range exchanges {
		src, ok := new(big.Int).SetString(ex.SrcAmount, 10)
		if !ok {
			return nil, nil, "", fmt.Errorf("%w: bad srcAmount %q", domain.ErrUpstream, ex.SrcAmount)
		}
		dst, ok := new(big.Int).SetString(ex.DestAmount, 10)
		if !ok {
			return nil, nil, "", fmt.Errorf("%w: bad destAmount %q", domain.ErrUpstream, ex.DestAmount)
		}
		in.Add(in, src)
		out.Add(out, dst)
		if ex.Percent > bestPct {
			dominant, bestPct = ex.Exchange, ex.Percent
		}
	}
	return in, out, dominant, nil
}

// hopToken resuelve el Token de un tramo: usa los tokens del request cuando
// la address coincide y construye uno mínimo para los intermedios.
func hopToken(req domain.SwapRequest, address string, decimals int) domain.Token {
	switch address {
	case req.TokenIn.Address:
		return req.TokenIn
	case req.TokenOut.Address:
		return req.TokenOut
	}
	return domain.Token{ChainID: req.ChainID(), Address: address, Decimals: decimals}
}
