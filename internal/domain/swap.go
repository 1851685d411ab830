package domain

import (
	"fmt"
	"math/big"
	"time"
)

// SwapRequest es la petición de swap de un caller. Value object inmutable:
// se crea una vez por request y no se modifica.
type SwapRequest struct {
	TokenIn     Token
	TokenOut    Token
	AmountIn    *big.Int // unidad mínima del token de entrada
	SlippageBps int      // tolerancia de slippage en basis points
	Deadline    time.Time
}

// Validate rechaza requests inválidos antes de contactar ningún venue.
// Los errores de input del caller son síncronos (ver taxonomía en errors.go).
func (r SwapRequest) Validate() error {
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return fmt.Errorf("%w: amount_in must be positive", ErrInvalidRequest)
	}
	if r.TokenIn.Equal(r.TokenOut) {
		return fmt.Errorf("%w: token_in and token_out are the same", ErrInvalidRequest)
	}
	if r.TokenIn.ChainID != r.TokenOut.ChainID {
		return fmt.Errorf("%w: cross-chain swaps are not supported", ErrInvalidRequest)
	}
	if r.SlippageBps < 0 {
		return fmt.Errorf("%w: slippage_bps must be >= 0", ErrInvalidRequest)
	}
	return nil
}

// ChainID devuelve la chain sobre la que opera el request.
func (r SwapRequest) ChainID() uint64 {
	return r.TokenIn.ChainID
}
