package consumers

import "errors"

var (
	// ErrRetryLater makes a queue redeliver the message later.
	ErrRetryLater = errors.New("retry later")

	// ErrPermanent and ErrBadMessage make a queue drop the message.
	ErrPermanent  = errors.New("permanent error")
	ErrBadMessage = errors.New("bad message")
)

// Result is a short label of a consume error for metrics.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsHandled(err):
		return "dropped"
	default:
		return "retry"
	}
}
