package grpccas

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/privfeedback/pfb/storage"
)

// mapRPC turns a status error from the server back into a storage sentinel.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return storage.ErrNotFound
	case codes.InvalidArgument:
		return storage.ErrInvalidCID
	case codes.DataLoss:
		return storage.ErrCIDMismatch
	case codes.AlreadyExists:
		return storage.ErrImmutable
	case codes.Unimplemented:
		return storage.ErrReadOnly
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", storage.ErrTooLarge, st.Message())
	default:
		return err
	}
}

// mapErr is the server-side inverse of mapRPC.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidCID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrCIDMismatch):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, storage.ErrImmutable):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, storage.ErrReadOnly):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, storage.ErrTooLarge):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.FromContextError(err).Err()
	}
}
