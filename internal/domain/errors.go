package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrWSDisconnect    = errors.New("websocket disconnected")
	ErrReconnectFailed = errors.New("reconnect attempts exhausted")
	ErrFillTimeout     = errors.New("order not filled within wait window")
	ErrOrderCancelled  = errors.New("order cancelled before fill")
	ErrContextDone     = errors.New("context cancelled")
)
