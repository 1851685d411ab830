package domain

import (
	"fmt"
	"math/big"
)

// Token identifica un activo en una chain concreta.
// Inmutable: se construye desde configuración estática o metadata on-chain.
type Token struct {
	Symbol   string
	ChainID  uint64
	Address  string // contract address, vacío para el token nativo
	Decimals int
}

// IsNative devuelve true si el token es el activo nativo de la chain
// (sin contract address).
func (t Token) IsNative() bool {
	return t.Address == ""
}

// Equal compara por símbolo + chain + address.
func (t Token) Equal(other Token) bool {
	return t.Symbol == other.Symbol &&
		t.ChainID == other.ChainID &&
		t.Address == other.Address
}

// String devuelve "SYMBOL@chainID" para logging.
func (t Token) String() string {
	return fmt.Sprintf("%s@%d", t.Symbol, t.ChainID)
}

// Units devuelve 10^decimals como big.Int (una unidad entera del token
// en su unidad mínima).
func (t Token) Units() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(t.Decimals)), nil)
}
