package domain

import (
	"fmt"
	"math/big"
	"time"
)

// ExecutionStatus represents the lifecycle of an execution descriptor.
// Transitions only move forward: pending → submitted → {confirmed|failed}.
type ExecutionStatus string

const (
	ExecStatusPending   ExecutionStatus = "pending"
	ExecStatusSubmitted ExecutionStatus = "submitted"
	ExecStatusConfirmed ExecutionStatus = "confirmed"
	ExecStatusFailed    ExecutionStatus = "failed"
)

// Valid reports whether s is a known status value.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecStatusPending, ExecStatusSubmitted, ExecStatusConfirmed, ExecStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecStatusConfirmed || s == ExecStatusFailed
}

// CanTransition reports whether s → next is a legal forward transition.
func (s ExecutionStatus) CanTransition(next ExecutionStatus) bool {
	switch s {
	case ExecStatusPending:
		return next == ExecStatusSubmitted
	case ExecStatusSubmitted:
		return next == ExecStatusConfirmed || next == ExecStatusFailed
	}
	return false
}

// ExecutionDescriptor is the venue-agnostic result of accepting a quote for
// execution. An external signer/broadcaster consumes it; the engine never
// signs or broadcasts. Status is mutated only by the router in response to
// caller-reported events, and is terminal once confirmed or failed.
type ExecutionDescriptor struct {
	ID           string // UUID local
	Quote        Quote
	Target       string   // destination contract
	Payload      []byte   // opaque calldata-equivalent for the signer
	Value        *big.Int // native value to attach (input amount if native, else 0)
	GasLimit     uint64
	MinAmountOut *big.Int
	Status       ExecutionStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transition applies a forward-only status change, updating UpdatedAt.
func (e *ExecutionDescriptor) Transition(next ExecutionStatus, at time.Time) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	if !e.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, e.Status, next)
	}
	e.Status = next
	e.UpdatedAt = at
	return nil
}
