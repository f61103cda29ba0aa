package paymentprovider

import "errors"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidEvent     = errors.New("invalid webhook event")

	// ErrTransient marks errors worth retrying: network and rate limit errors.
	ErrTransient = errors.New("temporary payment provider error")
)
