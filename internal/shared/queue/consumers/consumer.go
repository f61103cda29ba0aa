package consumers

import (
	"context"

	"github.com/pkg/errors"
)

type Consumer interface {
	ConsumeMessage(ctx context.Context, message []byte) error
}

// IsHandled reports whether message must be removed from a queue after consuming.
func IsHandled(err error) bool {
	if err == nil {
		return true
	}

	cause := errors.Cause(err)
	return cause == ErrPermanent || cause == ErrBadMessage
}
