package trigger

import "errors"

var (
	ErrInvalidConfig     = errors.New("trigger: invalid config")
	ErrInvalidAgentState = errors.New("trigger: invalid agent state")
)
