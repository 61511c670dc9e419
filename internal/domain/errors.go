package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("open trade already exists for pair")
	ErrInvalidState = errors.New("trade is not open")
	ErrWSDisconnect = errors.New("websocket disconnected")
	ErrParse        = errors.New("malformed message")
)
