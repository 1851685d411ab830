package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/swaproute/internal/domain"
)

// ExecutionStore persiste execution descriptors y su historial de estados.
type ExecutionStore interface {
	// SaveExecution inserta un descriptor recién creado (status pending).
	SaveExecution(ctx context.Context, e domain.ExecutionDescriptor) error

	// RecordTransition registra un cambio de estado ya validado por el router.
	RecordTransition(ctx context.Context, execID string, from, to domain.ExecutionStatus, at time.Time) error

	// GetExecution devuelve un descriptor por ID.
	GetExecution(ctx context.Context, id string) (domain.ExecutionDescriptor, error)

	// Close cierra la conexión limpiamente.
	Close() error
}

// CycleStore persiste el resumen de cada ciclo de agregación (observabilidad
// histórica, no participa en el camino caliente).
type CycleStore interface {
	SaveCycle(ctx context.Context, c AggregationCycle) error
}

// AggregationCycle es el resumen de una llamada GetQuotes.
type AggregationCycle struct {
	RequestedAt   time.Time
	ChainID       uint64
	TokenIn       string
	TokenOut      string
	AmountIn      string
	VenuesQueried int
	VenuesOK      int
	BestVenue     string
	BestNetOut    string
	Duration      time.Duration
}
