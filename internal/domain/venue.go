package domain

import "time"

// VenueDescriptor es la metadata estática de un venue. Vive en el registry
// y solo muta vía reload de configuración.
type VenueDescriptor struct {
	ID           string
	Name         string
	Kind         string // tipo de adapter: "oneinch" | "zerox" | "paraswap"
	BaseURL      string
	APIKey       string
	Target       string // contrato destino para ejecutar (spender/router address)
	FeePerMille  int    // fee del venue en per-mille
	Chains       []uint64
	Active       bool
	GasEstimate  uint64 // estimación nominal de gas por swap
	LatencyClass string // "fast" | "normal" | "slow", informativo

	// Overrides opcionales del wrapper de resiliencia (0 = usar default).
	RecoveryTimeout time.Duration
	RatePerSec      float64
	Burst           int
}

// SupportsChain devuelve true si el venue opera en la chain dada.
func (v VenueDescriptor) SupportsChain(chainID uint64) bool {
	for _, c := range v.Chains {
		if c == chainID {
			return true
		}
	}
	return false
}

// FeeBps devuelve el fee del venue en basis points.
func (v VenueDescriptor) FeeBps() int {
	return v.FeePerMille * 10
}
