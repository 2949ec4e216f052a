package domain

import "errors"

var (
	ErrLagged             = errors.New("subscriber lagged behind playlist")
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrServiceStopped     = errors.New("relay service stopped")
	ErrEmptyPlaylistName  = errors.New("playlist name is empty")
)
