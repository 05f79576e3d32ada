package taxonomy

import "fmt"

// GraphConsistencyError reports a relationship graph that cannot be resolved
// into the expected hierarchy shape: a cycle in the presentation arcs, or a
// path too short to carry a schedule level.
type GraphConsistencyError struct {
	Code   string
	Reason string
}

func (e *GraphConsistencyError) Error() string {
	return fmt.Sprintf("graph consistency: %s: %s", e.Code, e.Reason)
}
