package aireg_protocol

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/gagliardetto/solana-go"
)

//go:embed registry_idl.json
var registryIDL []byte

// IDL is the subset of program metadata the client uses: the error table.
type IDL struct {
	Version string     `json:"version"`
	Name    string     `json:"name"`
	Errors  []IDLError `json:"errors"`
}

type IDLError struct {
	Code uint32 `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

func ParseIDL(idlBytes []byte) (*IDL, error) {
	var idl IDL
	if err := json.Unmarshal(idlBytes, &idl); err != nil {
		return nil, fmt.Errorf("error unmarshalling IDL JSON: %w", err)
	}
	return &idl, nil
}

var (
	initIdlOnce sync.Once
	initIdlErr  error
	errorTable  map[uint32]IDLError
)

func initializeIDL() error {
	initIdlOnce.Do(func() {
		var idl *IDL
		idl, initIdlErr = ParseIDL(registryIDL)
		if initIdlErr != nil {
			return
		}
		errorTable = make(map[uint32]IDLError, len(idl.Errors))
		for _, e := range idl.Errors {
			errorTable[e.Code] = e
		}
	})
	return initIdlErr
}

// LookupProgramError returns the table entry for a custom error code.
func LookupProgramError(code uint32) (IDLError, bool) {
	if err := initializeIDL(); err != nil {
		return IDLError{}, false
	}
	e, ok := errorTable[code]
	return e, ok
}

// ProgramError is a custom error raised by one of the registry programs.
type ProgramError struct {
	Program solana.PublicKey
	Code    uint32
	Name    string
	Msg     string
	Err     error
}

func (e *ProgramError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("program %s failed with custom error %d", e.Program, e.Code)
	}
	return fmt.Sprintf("program %s failed: %s (%d): %s", e.Program, e.Name, e.Code, e.Msg)
}

func (e *ProgramError) Unwrap() error { return e.Err }

func (e *ProgramError) Is(target error) bool {
	switch e.Name {
	case "AccountAlreadyExists":
		return target == ErrAlreadyExists || target == ErrTransaction
	case "AccountNotFound":
		return target == ErrNotFound || target == ErrTransaction
	case "InsufficientFunds":
		return target == ErrInsufficientFunds || target == ErrTransaction
	}
	return target == ErrTransaction
}

var customErrorPattern = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// TranslateProgramError rewrites a "custom program error: 0x.." failure from
// program into a *ProgramError. Other errors are returned unchanged.
func TranslateProgramError(program solana.PublicKey, err error) error {
	if err == nil {
		return nil
	}
	texts := []string{err.Error()}
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		texts = append(texts, txErr.Logs...)
	}
	for _, text := range texts {
		m := customErrorPattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		code, perr := strconv.ParseUint(m[1], 16, 32)
		if perr != nil {
			continue
		}
		pe := &ProgramError{Program: program, Code: uint32(code), Err: err}
		if entry, ok := LookupProgramError(uint32(code)); ok {
			pe.Name = entry.Name
			pe.Msg = entry.Msg
		}
		return pe
	}
	return err
}
