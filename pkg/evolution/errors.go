package evolution

import "errors"

var (
	ErrInvalidPolicy     = errors.New("evolution: invalid policy")
	ErrInvalidTrigger    = errors.New("evolution: invalid trigger")
	ErrInvalidTransition = errors.New("evolution: invalid transition")
	ErrInvalidCondition  = errors.New("evolution: invalid condition")
	ErrInvalidAgentState = errors.New("evolution: invalid agent state")
	ErrInvalidGuard      = errors.New("evolution: invalid guard")
)
