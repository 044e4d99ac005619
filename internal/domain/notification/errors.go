package notification

import "errors"

var (
	ErrNoRecipient = errors.New("employee has no e-mail address")
	ErrQueueClosed = errors.New("notification dispatcher is stopped")
)
