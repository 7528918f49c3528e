package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, fields ...*Field) []*Field {
	t.Helper()
	compiled, err := CompileAll(fields, nil)
	require.NoError(t, err)
	return compiled
}

func TestClassify_Record(t *testing.T) {
	fields := compile(t,
		&Field{IncomingName: "f1", DocPath: "a.b", AppendIncomingName: true},
		&Field{IncomingName: "f2", DocPath: "", AppendIncomingName: true},
	)
	assert.Equal(t, TopLevelRecord, Classify(fields))
}

func TestClassify_Array(t *testing.T) {
	fields := compile(t,
		&Field{IncomingName: "f1", DocPath: "[0].a", AppendIncomingName: false},
		&Field{IncomingName: "f2", DocPath: "[1].b", AppendIncomingName: false},
	)
	assert.Equal(t, TopLevelArray, Classify(fields))
}

func TestClassify_Inconsistent(t *testing.T) {
	fields := compile(t,
		&Field{IncomingName: "f1", DocPath: "a.b", AppendIncomingName: true},
		&Field{IncomingName: "f2", DocPath: "[0].c", AppendIncomingName: false},
	)
	assert.Equal(t, TopLevelInconsistent, Classify(fields))
}

func TestClassify_EmptyPathCountsAsRecord(t *testing.T) {
	fields := compile(t,
		&Field{IncomingName: "f1", DocPath: "", AppendIncomingName: true},
	)
	assert.Equal(t, TopLevelRecord, Classify(fields))
}
