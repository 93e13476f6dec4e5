package consensus

import (
	"errors"

	"github.com/yourusername/headerproof/pkg/types"
)

// Rule violations. Every one of them is fatal to a validation run.
var (
	ErrMalformedHeader           = types.ErrMalformedHeader
	ErrUnsupportedVersion        = errors.New("unsupported version")
	ErrBrokenChain               = errors.New("broken chain")
	ErrInvalidDifficultyEncoding = errors.New("invalid difficulty encoding")
	ErrInsufficientWork          = errors.New("insufficient proof of work")
	ErrTimeNotMonotonic          = errors.New("time not monotonic")
	ErrExcessiveTimeDrift        = errors.New("excessive time drift")

	// ErrEmptyChain is returned when the record stream announces zero headers
	ErrEmptyChain = errors.New("empty chain")

	// ErrCancelled is returned when a run is cancelled between two headers
	ErrCancelled = errors.New("cancelled")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrMalformedHeader, "MalformedHeader"},
	{ErrUnsupportedVersion, "UnsupportedVersion"},
	{ErrBrokenChain, "BrokenChain"},
	{ErrInvalidDifficultyEncoding, "InvalidDifficultyEncoding"},
	{ErrInsufficientWork, "InsufficientWork"},
	{ErrTimeNotMonotonic, "TimeNotMonotonic"},
	{ErrExcessiveTimeDrift, "ExcessiveTimeDrift"},
	{ErrEmptyChain, "EmptyChain"},
	{ErrCancelled, "Cancelled"},
}

// KindOf returns the taxonomy name of err, or "" if err is not a rule violation
func KindOf(err error) string {
	if err == nil {
		return ""
	}

	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}

	return ""
}

// IsRuleViolation reports whether err was caused by the input data.
// Cancellation is not a property of the input and is excluded.
func IsRuleViolation(err error) bool {
	kind := KindOf(err)
	return kind != "" && kind != "Cancelled"
}

// ErrorForKind returns the sentinel error named by kind, or nil for an unknown name
func ErrorForKind(kind string) error {
	for _, k := range kinds {
		if k.name == kind {
			return k.err
		}
	}
	return nil
}
