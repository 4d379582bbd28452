package workflow

import "fmt"

// GraphValidationError reports a malformed graph at compile time: a missing
// entry stage or an edge/branch target that is not a registered stage.
type GraphValidationError struct {
	Stage  string
	Target string
	Reason string
}

func (e *GraphValidationError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("workflow graph: stage %q routes to unregistered stage %q", e.Stage, e.Target)
	}
	return fmt.Sprintf("workflow graph: %s", e.Reason)
}

// StageRoutingError is an engine invariant violation at run time: a branch
// function returned a successor outside its declared set.
type StageRoutingError struct {
	Stage  string
	Target string
}

func (e *StageRoutingError) Error() string {
	return fmt.Sprintf("workflow run: branch at stage %q resolved to undeclared stage %q", e.Stage, e.Target)
}

// ExhaustedError means the run exceeded the max-hop guard, which points at a
// handler bug causing a cycle without progress.
type ExhaustedError struct {
	Hops  int
	Stage string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("workflow run: exhausted after %d hops at stage %q", e.Hops, e.Stage)
}
