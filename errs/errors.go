// Package errs defines the sentinel errors shared across the wavefst packages.
//
// Errors are combined with contextual details via fmt.Errorf("%w: ...", sentinel)
// so callers can classify failures with errors.Is while still receiving a
// descriptive message.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptData indicates that a block payload violates the container
	// format: truncated varints, mismatched lengths, invalid markers, or
	// inconsistent chain indices.
	ErrCorruptData = errors.New("corrupt data")

	// ErrUnexpectedEOF indicates that the byte source ended in the middle of
	// a structure whose declared length promised more bytes.
	ErrUnexpectedEOF = errors.New("unexpected end of input")

	// ErrUnsupportedCompression indicates a compression backend that this
	// build does not provide.
	ErrUnsupportedCompression = errors.New("unsupported compression")

	// ErrUnsupportedFeature indicates a format feature the implementation
	// recognizes but does not handle.
	ErrUnsupportedFeature = errors.New("unsupported feature")

	// ErrInvalidState indicates an API call that is not legal in the current
	// encoder or decoder state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidValue indicates a value that does not match the geometry
	// registered for its handle.
	ErrInvalidValue = errors.New("invalid value")

	// ErrUnknownHandle indicates a handle outside the registered range.
	ErrUnknownHandle = errors.New("unknown handle")
)

// Derived sentinels for common state violations. They chain to ErrInvalidState
// so errors.Is(err, ErrInvalidState) matches all of them.
var (
	// ErrHeaderNotWritten reports a change emitted before WriteHeader.
	ErrHeaderNotWritten = fmt.Errorf("%w: header not written", ErrInvalidState)

	// ErrHeaderAlreadyWritten reports metadata mutation after WriteHeader.
	ErrHeaderAlreadyWritten = fmt.Errorf("%w: header already written", ErrInvalidState)

	// ErrScopeUnderflow reports EndScope without a matching BeginScope.
	ErrScopeUnderflow = fmt.Errorf("%w: scope stack underflow", ErrInvalidState)

	// ErrWriterFinished reports use of a writer after Finish.
	ErrWriterFinished = fmt.Errorf("%w: writer already finished", ErrInvalidState)

	// ErrTimeRegression reports a change emitted with a timestamp earlier
	// than the previous one.
	ErrTimeRegression = fmt.Errorf("%w: timestamp regression", ErrInvalidState)

	// ErrAliasCycle reports an alias chain that never reaches a canonical
	// handle.
	ErrAliasCycle = fmt.Errorf("%w: alias resolution cycle", ErrCorruptData)
)
