// Package jobid reserves job identifiers exclusively before execution begins.
// A reservation is an atomic reserve-if-absent against the set of identifiers
// that are currently reserved or were ever used, so two concurrent attempts
// on the same identifier have exactly one winner.
package jobid

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/awesomeDataTool/genie/pkg/gerr"
	"github.com/awesomeDataTool/genie/pkg/kv"
)

// ErrUnavailable is returned when the requested identifier is already
// reserved by another job attempt or was already used by a finished one.
var ErrUnavailable = errors.New("jobid: identifier already reserved or used")

// Outcome describes how a reservation is released.
type Outcome string

const (
	// OutcomeUsed retires the identifier permanently. An identifier is used
	// the moment execution was attempted, even if it failed.
	OutcomeUsed Outcome = "used"
	// OutcomeFree returns the identifier to the pool. Only valid when the
	// job attempt aborted before execution truly started.
	OutcomeFree Outcome = "free"
)

// Allocator hands out exclusively owned job identifiers.
type Allocator interface {
	// Reserve claims the requested identifier, or generates and claims a
	// fresh one when requested is empty.
	Reserve(ctx context.Context, requested string) (string, error)

	// Release ends a reservation with the given outcome.
	Release(ctx context.Context, id string, outcome Outcome) error
}

const (
	keyPrefix = "genie:jobid:"

	stateReserved = "reserved"
	stateUsed     = "used"

	// generateAttempts bounds the SetNX retry loop for generated IDs.
	// UUIDv7 collisions are not a practical concern; the bound exists so a
	// misbehaving store cannot spin forever.
	generateAttempts = 5
)

// KVAllocator implements Allocator over a kv.Store. The store's SetNX is the
// single synchronization point: with a Valkey backend the reservation is
// atomic across processes, with the in-memory backend across goroutines.
type KVAllocator struct {
	store kv.Store
}

// NewKVAllocator creates an allocator backed by the given store.
func NewKVAllocator(store kv.Store) *KVAllocator {
	return &KVAllocator{store: store}
}

// Reserve claims an identifier. Requested identifiers that are already
// reserved or used fail with ErrUnavailable (gerr code job_id_unavailable).
// Generated identifiers are UUIDv7, so they sort by creation time.
func (a *KVAllocator) Reserve(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		ok, err := a.store.SetNX(ctx, keyPrefix+requested, []byte(stateReserved), 0)
		if err != nil {
			return "", fmt.Errorf("reserving job id %s: %w", requested, err)
		}
		if !ok {
			return "", gerr.New(gerr.CodeIDUnavailable,
				fmt.Errorf("%w: %s", ErrUnavailable, requested))
		}
		return requested, nil
	}

	for i := 0; i < generateAttempts; i++ {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generating job id: %w", err)
		}
		ok, err := a.store.SetNX(ctx, keyPrefix+id.String(), []byte(stateReserved), 0)
		if err != nil {
			return "", fmt.Errorf("reserving generated job id: %w", err)
		}
		if ok {
			return id.String(), nil
		}
	}

	return "", fmt.Errorf("jobid: gave up after %d collisions on generated identifiers", generateAttempts)
}

// Release ends a reservation. OutcomeUsed marks the identifier permanently
// unavailable; OutcomeFree deletes the reservation so the identifier can be
// claimed again.
func (a *KVAllocator) Release(ctx context.Context, id string, outcome Outcome) error {
	switch outcome {
	case OutcomeUsed:
		if err := a.store.Set(ctx, keyPrefix+id, []byte(stateUsed), 0); err != nil {
			return fmt.Errorf("marking job id %s used: %w", id, err)
		}
		return nil
	case OutcomeFree:
		if err := a.store.Delete(ctx, keyPrefix+id); err != nil {
			return fmt.Errorf("freeing job id %s: %w", id, err)
		}
		return nil
	default:
		return fmt.Errorf("jobid: unknown release outcome %q", outcome)
	}
}

// Ensure KVAllocator implements Allocator.
var _ Allocator = (*KVAllocator)(nil)
