package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrUnavailable     = errors.New("server unavailable")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNoSession       = errors.New("not logged in")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.AlreadyExists:
		return common.ErrDuplicateEmail
	case codes.PermissionDenied:
		return common.ErrAccountNotVerified
	case codes.Unauthenticated:
		switch st.Message() {
		case common.ErrInvalidCredentials.Error():
			return common.ErrInvalidCredentials
		case common.ErrTokenExpired.Error():
			return common.ErrTokenExpired
		case common.ErrTokenRevoked.Error():
			return common.ErrTokenRevoked
		}
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.InvalidArgument:
		if st.Message() == common.ErrInvalidOrExpiredToken.Error() {
			return common.ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
