package models

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrConfig            = errors.New("configuration error")
	ErrGateway           = errors.New("payment gateway error")
	ErrRemoteCall        = errors.New("remote call failed")
	ErrIllegalTransition = errors.New("illegal status transition")
)
