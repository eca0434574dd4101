package timeline

import (
	"fmt"

	"github.com/kilianp07/harvestplan/core/model"
)

// StructuralError reports an action that does not fit the timelines decoded
// so far, such as an overload on a field without an open interval.
type StructuralError struct {
	Index  int
	Action model.Action
	Detail string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("decode action %d %s: %s", e.Index, e.Action, e.Detail)
}

func structural(i int, a model.Action, format string, args ...any) *StructuralError {
	return &StructuralError{Index: i, Action: a, Detail: fmt.Sprintf(format, args...)}
}
