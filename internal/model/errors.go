package model

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrEmptyInvoice = errors.New("no unbilled entries match the selection")
	ErrOverpayment  = errors.New("payment amount does not match invoice total")
)
