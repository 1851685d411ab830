package domain

import "errors"

// Taxonomía de errores del engine. Los adapters normalizan cualquier fallo
// upstream a uno de estos sentinels (envuelto con %w); el resto del sistema
// clasifica con errors.Is y nunca expone errores de red crudos al caller.
var (
	// ErrInvalidRequest — input del caller inválido, rechazado antes de
	// contactar ningún venue.
	ErrInvalidRequest = errors.New("invalid swap request")

	// ErrUnsupported — el venue no sirve este par/chain. Esperado, no es
	// un fallo y no cuenta para el circuit breaker.
	ErrUnsupported = errors.New("pair or chain not supported by venue")

	// ErrTimeout — el upstream no respondió dentro del presupuesto del wrapper.
	ErrTimeout = errors.New("venue timed out")

	// ErrRateLimited — el upstream devolvió 429.
	ErrRateLimited = errors.New("venue rate limited")

	// ErrUpstream — respuesta no-2xx o payload inválido del venue.
	ErrUpstream = errors.New("venue upstream error")

	// ErrCircuitOpen — rechazo derivado del breaker, sin llamada de red.
	// No cuenta como fallo nuevo hacia el threshold.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrNoQuotes — resultado agregado: cero venues devolvieron quote.
	// Distinto de un resultado parcial (que no es error).
	ErrNoQuotes = errors.New("no quotes available")

	// ErrStaleQuote — quote fuera de la ventana de frescura; requiere re-fetch.
	ErrStaleQuote = errors.New("quote is stale")

	// ErrSlippageExceeded — el price impact del quote excede la tolerancia
	// de slippage solicitada.
	ErrSlippageExceeded = errors.New("slippage tolerance exceeded")

	// ErrInvalidTransition — transición de estado de ejecución fuera de orden.
	ErrInvalidTransition = errors.New("invalid execution status transition")

	// ErrQuoteNotFound — el quote_id no corresponde a ningún quote reciente.
	ErrQuoteNotFound = errors.New("quote not found")

	// ErrExecutionExists — ya hay un execution descriptor activo para el quote.
	ErrExecutionExists = errors.New("execution already active for quote")

	// ErrExecutionNotFound — el execution_id no corresponde a ningún descriptor.
	ErrExecutionNotFound = errors.New("execution not found")
)

// IsTransient devuelve true si el error es transitorio y el caller puede
// reintentar tras backoff. CircuitOpen es transitorio para el caller pero
// no cuenta como fallo nuevo del venue.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrCircuitOpen)
}

// IsVenueFault devuelve true si el error debe contar hacia el failure
// threshold del breaker del venue.
func IsVenueFault(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUpstream)
}
