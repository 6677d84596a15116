package forecast

import "errors"

var (
	ErrInvalidConfig    = errors.New("forecast: invalid config")
	ErrInsufficientData = errors.New("forecast: insufficient data")
	ErrNonFiniteValue   = errors.New("forecast: non-finite value")
)
