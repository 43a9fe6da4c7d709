package core

import "errors"

var (
	ErrRouteUnreachable = errors.New("route unreachable")
	ErrSendTimeout      = errors.New("timed out waiting for acknowledgement")
	ErrSessionFailure   = errors.New("session failure")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrUsage            = errors.New("usage")
	ErrExit             = errors.New("exit requested")
)
