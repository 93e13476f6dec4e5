package blockchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/headerproof/internal/consensus"
	"github.com/yourusername/headerproof/pkg/types"
)

// RecordSource delivers a header count followed by that many header records, in order
type RecordSource interface {
	ReadCount(ctx context.Context) (uint32, error)
	ReadHeader(ctx context.Context) ([]byte, error)
}

// CommitmentSink receives the commitment of a successful run
type CommitmentSink interface {
	Commit(ctx context.Context, commitment types.Commitment) error
}

// SinkFunc adapts a function to a CommitmentSink
type SinkFunc func(ctx context.Context, commitment types.Commitment) error

// Commit calls f
func (f SinkFunc) Commit(ctx context.Context, commitment types.Commitment) error {
	return f(ctx, commitment)
}

// Status is the state of a Validator
type Status int

const (
	StatusAwaiting   Status = iota // nothing read yet
	StatusValidating               // headers are being checked
	StatusCommitted                // the last hash was committed
	StatusFailed                   // a check or read failed
)

func (s Status) String() string {
	switch s {
	case StatusAwaiting:
		return "awaiting"
	case StatusValidating:
		return "validating"
	case StatusCommitted:
		return "committed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrValidatorUsed is returned when Run is called a second time
var ErrValidatorUsed = errors.New("validator already used")

// ValidationError reports the header at which a run failed
type ValidationError struct {
	Height uint32
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("header %d: %v", e.Height, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Options configures a Validator
type Options struct {
	// BaselineTime is the earliest acceptable timestamp of the first header
	BaselineTime uint32
}

// DefaultOptions returns the options matching the Bitcoin main chain
func DefaultOptions() Options {
	return Options{BaselineTime: consensus.DefaultBaselineTime}
}

// Validator validates one header sequence and produces its commitment.
// A Validator runs once; create a new one per sequence.
type Validator struct {
	opts      Options
	status    Status
	remaining uint32
	processed uint32
	err       error
}

// NewValidator creates a Validator
func NewValidator(opts Options) *Validator {
	return &Validator{opts: opts, status: StatusAwaiting}
}

// Status returns the current state
func (v *Validator) Status() Status {
	return v.status
}

// Remaining returns the number of headers still expected
func (v *Validator) Remaining() uint32 {
	return v.remaining
}

// Processed returns the number of headers accepted so far
func (v *Validator) Processed() uint32 {
	return v.processed
}

// Err returns the error that failed the run, if any
func (v *Validator) Err() error {
	return v.err
}

// Run reads the count and every header from src, checks them in order and, when
// the last one passes, hands its double hash to sink and returns it. The first
// failing check ends the run and nothing is committed. sink may be nil.
func (v *Validator) Run(ctx context.Context, src RecordSource, sink CommitmentSink) (types.Commitment, error) {
	if v.status != StatusAwaiting || v.processed != 0 {
		return types.Commitment{}, ErrValidatorUsed
	}

	count, err := src.ReadCount(ctx)
	if err != nil {
		return v.fail(err)
	}

	if count == 0 {
		return v.fail(consensus.ErrEmptyChain)
	}

	state := NewChainState(v.opts.BaselineTime)
	v.remaining = count

	for height := uint32(0); ; height++ {
		if err := ctx.Err(); err != nil {
			return v.fail(&ValidationError{Height: height, Err: fmt.Errorf("%w: %v", consensus.ErrCancelled, err)})
		}

		v.status = StatusValidating

		raw, err := src.ReadHeader(ctx)
		if err != nil {
			return v.fail(&ValidationError{Height: height, Err: err})
		}

		hash, err := state.Apply(raw)
		if err != nil {
			return v.fail(&ValidationError{Height: height, Err: err})
		}

		v.remaining--
		v.processed++

		if v.remaining == 0 {
			if sink != nil {
				if err := sink.Commit(ctx, hash); err != nil {
					return v.fail(fmt.Errorf("failed to publish commitment: %w", err))
				}
			}

			v.status = StatusCommitted

			return hash, nil
		}

		v.status = StatusAwaiting
	}
}

func (v *Validator) fail(err error) (types.Commitment, error) {
	v.status = StatusFailed
	v.err = err

	return types.Commitment{}, err
}

// Validate runs a fresh Validator over src
func Validate(ctx context.Context, opts Options, src RecordSource, sink CommitmentSink) (types.Commitment, error) {
	return NewValidator(opts).Run(ctx, src, sink)
}
