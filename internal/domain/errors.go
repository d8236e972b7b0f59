package domain

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrItemNotFound = errors.New("meme not found")
)
