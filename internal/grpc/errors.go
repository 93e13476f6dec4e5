package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/yourusername/headerproof/internal/consensus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain tags the ErrorInfo detail carrying a rule violation's kind
const ErrorDomain = "headerproof"

// toStatus converts a prove failure to a gRPC status. Rule violations carry
// their kind as an ErrorInfo reason.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	var code codes.Code
	kind := consensus.KindOf(err)

	switch {
	case kind == "Cancelled" || errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case kind != "":
		code = codes.InvalidArgument
	case errors.Is(err, io.ErrUnexpectedEOF):
		code = codes.InvalidArgument
	default:
		if st, ok := status.FromError(err); ok {
			return st.Err()
		}
		code = codes.Internal
	}

	st := status.New(code, err.Error())
	if kind == "" {
		return st.Err()
	}

	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: kind, Domain: ErrorDomain})
	if derr != nil {
		return st.Err()
	}

	return detailed.Err()
}

// fromStatus restores the rule violation sentinel from a status so that callers
// can use errors.Is on client errors
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.Domain != ErrorDomain {
			continue
		}
		if sentinel := consensus.ErrorForKind(info.Reason); sentinel != nil {
			return &RemoteError{Kind: sentinel, Status: st}
		}
	}

	return err
}

// RemoteError is a rule violation reported by a remote prover
type RemoteError struct {
	Kind   error
	Status *status.Status
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote prover: %s", e.Status.Message())
}

func (e *RemoteError) Unwrap() error {
	return e.Kind
}

// GRPCStatus lets status.FromError and status.Code see through the wrapper
func (e *RemoteError) GRPCStatus() *status.Status {
	return e.Status
}
