package models

import "errors"

// ErrInput marks fatal input problems: missing columns, bad prices, short history.
var ErrInput = errors.New("invalid input")
