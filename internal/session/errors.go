package session

import "errors"

var (
	ErrNotSignedIn    = errors.New("not signed in")
	ErrInvalidIDToken = errors.New("invalid identity token")
	ErrSessionExpired = errors.New("session expired")
)
