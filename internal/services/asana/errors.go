package asana

import (
	"errors"
	"fmt"
)

// ErrGuard is matched by every GuardError
var ErrGuard = errors.New("wizard transition not allowed")

// GuardError reports an action attempted from a step that does not allow it
type GuardError struct {
	Action string
	Step   Step
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s not allowed on step %q: %s", e.Action, e.Step, e.Reason)
}

func (e *GuardError) Is(target error) bool {
	return target == ErrGuard
}
