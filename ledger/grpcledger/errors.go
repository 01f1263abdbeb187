package grpcledger

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/privfeedback/pfb/ledger"
)

var statusCodes = []struct {
	err  error
	code codes.Code
}{
	{ledger.ErrUnknownService, codes.NotFound},
	{ledger.ErrNotOwner, codes.PermissionDenied},
	{ledger.ErrNotInvited, codes.FailedPrecondition},
	{ledger.ErrAlreadySubmitted, codes.AlreadyExists},
	{ledger.ErrBadSignature, codes.Unauthenticated},
	{ledger.ErrInvalidArgument, codes.InvalidArgument},
}

// mapErr converts a ledger error into a status error.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	for _, m := range statusCodes {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	return status.FromContextError(err).Err()
}

// mapRPC turns a status error from the server back into a ledger sentinel.
func mapRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return err
	}
	for _, m := range statusCodes {
		if st.Code() == m.code {
			if m.code == codes.InvalidArgument {
				return fmt.Errorf("%w (remote: %s)", m.err, st.Message())
			}
			return m.err
		}
	}
	return err
}

func invalid(format string, args ...any) error {
	return status.Error(codes.InvalidArgument, fmt.Sprintf(format, args...))
}
