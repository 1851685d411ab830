package oneinch

// DTOs raw de la API. Solo se usan dentro de este paquete; la conversión a
// domain entities vive en mapping.go.

// quoteResponse es la respuesta de GET /swap/v6.0/{chain}/quote.
type quoteResponse struct {
	DstAmount string            `json:"dstAmount"`
	Gas       uint64            `json:"gas"`
	Protocols [][][]protocolRaw `json:"protocols"`
}

// protocolRaw es un split de un hop del routing: [ruta][hop][split].
type protocolRaw struct {
	Name             string  `json:"name"`
	Part             float64 `json:"part"` // porcentaje del split
	FromTokenAddress string  `json:"fromTokenAddress"`
	ToTokenAddress   string  `json:"toTokenAddress"`
}
