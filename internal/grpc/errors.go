package grpcserver

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"deliveryService/internal/apperr"
)

// toStatus maps an application error onto a gRPC status. InvalidArgument carries
// a BadRequest detail naming the offending field.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	msg := apperr.Message(err)
	switch {
	case errors.Is(err, apperr.InvalidArgument):
		st := status.New(codes.InvalidArgument, msg)
		if field := apperr.Field(err); field != "" {
			if detailed, derr := st.WithDetails(&errdetails.BadRequest{
				FieldViolations: []*errdetails.BadRequest_FieldViolation{{Field: field, Description: msg}},
			}); derr == nil {
				st = detailed
			}
		}
		return st.Err()
	case errors.Is(err, apperr.NotFound):
		return status.Error(codes.NotFound, msg)
	case errors.Is(err, apperr.Conflict):
		return status.Error(codes.Aborted, msg)
	case errors.Is(err, apperr.Unauthorized):
		return status.Error(codes.PermissionDenied, msg)
	case errors.Is(err, apperr.Unauthenticated):
		return status.Error(codes.Unauthenticated, "authentication failed")
	default:
		return status.Error(codes.Internal, msg)
	}
}
