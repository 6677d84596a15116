package decay

import "errors"

var (
	ErrInvalidModel    = errors.New("decay: invalid model")
	ErrInvalidArgument = errors.New("decay: invalid argument")
)
