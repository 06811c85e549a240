package aireg_protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Error kinds, matched by the concrete error types below through errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrAlreadyExists     = errors.New("entry already exists")
	ErrNotFound          = errors.New("entry not found")
	ErrDecode            = errors.New("malformed account data")
	ErrConnection        = errors.New("rpc connection failed")
	ErrTransaction       = errors.New("transaction failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRetryExhausted    = errors.New("transaction retries exhausted")
	ErrNoViableBump      = errors.New("no viable bump seed for program address")
)

// ValidationError is raised for locally detectable bad input, before any network call.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Constraint)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// EntryKind names the registry an entry belongs to.
type EntryKind string

const (
	KindAgent     EntryKind = "agent"
	KindMcpServer EntryKind = "mcp server"
)

// EntryExistsError is returned when a register pre-check finds an existing entry.
type EntryExistsError struct {
	Kind  EntryKind
	ID    string
	Owner solana.PublicKey
}

func (e *EntryExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists for owner %s", e.Kind, e.ID, e.Owner)
}

func (e *EntryExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// EntryNotFoundError is returned when a mutation pre-check finds no entry.
type EntryNotFoundError struct {
	Kind  EntryKind
	ID    string
	Owner solana.PublicKey
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found for owner %s", e.Kind, e.ID, e.Owner)
}

func (e *EntryNotFoundError) Is(target error) bool { return target == ErrNotFound }

// DecodeError reports where a buffer stopped matching its layout.
type DecodeError struct {
	Layout string
	Field  string
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s.%s at offset %d: %v", e.Layout, e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ConnectionError wraps transport failures reaching the RPC node.
type ConnectionError struct {
	Endpoint string
	Op       string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rpc %s against %s failed: %v", e.Op, e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// TransactionError is an on-chain or preflight rejection.
type TransactionError struct {
	Signature *solana.Signature
	Logs      []string
	Err       error
}

func (e *TransactionError) Error() string {
	if e.Signature != nil {
		return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
	}
	return fmt.Sprintf("transaction failed: %v", e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

func (e *TransactionError) Is(target error) bool { return target == ErrTransaction }

// RetryExhaustedError is returned once the submission attempt ceiling is hit.
// It keeps the last underlying error for diagnostics.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("transaction failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

func (e *RetryExhaustedError) Is(target error) bool {
	return target == ErrRetryExhausted || target == ErrTransaction
}

// InsufficientFundsError carries required and available amounts in base units.
type InsufficientFundsError struct {
	Required  uint64
	Available uint64
	Mint      solana.PublicKey
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %d, available %d (mint %s)", e.Required, e.Available, e.Mint)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds || target == ErrTransaction
}

// staleHashMarkers are the RPC error fragments that mean the blockhash aged out.
var staleHashMarkers = []string{
	"blockhash not found",
	"block height exceeded",
	"blockhash expired",
}

// IsStaleBlockhash reports whether err indicates a stale or unknown blockhash.
func IsStaleBlockhash(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range staleHashMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
