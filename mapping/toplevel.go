package mapping

// TopLevel is the kind of the root node of produced documents, derived from
// the user-specified field paths.
type TopLevel int

const (
	// TopLevelRecord means the root is an object.
	TopLevelRecord TopLevel = iota
	// TopLevelArray means the root is an array.
	TopLevelArray
	// TopLevelInconsistent means the field paths disagree on the root kind.
	// This is a hard initialization error, surfaced once before any row is
	// processed.
	TopLevelInconsistent
)

// String returns the string representation of a TopLevel
func (t TopLevel) String() string {
	switch t {
	case TopLevelRecord:
		return "record"
	case TopLevelArray:
		return "array"
	default:
		return "inconsistent"
	}
}

// Classify determines the top-level structure of outgoing documents from a
// compiled mapping set. A path that is empty or starts with an object field
// votes record; a path starting with an array index votes array. Mixed votes
// classify as inconsistent.
func Classify(fields []*Field) TopLevel {
	records := 0
	arrays := 0

	for _, f := range fields {
		steps := f.Steps()
		if len(steps) == 0 || steps[0].Kind == StepObject {
			records++
		} else {
			arrays++
		}
	}

	if records > 0 && arrays > 0 {
		return TopLevelInconsistent
	}
	if arrays > 0 {
		return TopLevelArray
	}
	return TopLevelRecord
}
