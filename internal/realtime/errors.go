package realtime

import "errors"

var (
	ErrSubscriptionLimit = errors.New("subscription limit reached")
	ErrTooManyClients    = errors.New("too many receipt stream clients")
	ErrBrokerStopped     = errors.New("receipt broker stopped")
)
