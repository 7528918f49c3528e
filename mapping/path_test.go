package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mongosink/errors"
)

func TestParsePath_Simple(t *testing.T) {
	steps, err := ParsePath("a.b.c")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, Step{Kind: StepObject, Name: "a"}, steps[0])
	assert.Equal(t, Step{Kind: StepObject, Name: "b"}, steps[1])
	assert.Equal(t, Step{Kind: StepObject, Name: "c"}, steps[2])
}

func TestParsePath_NameWithIndex(t *testing.T) {
	steps, err := ParsePath("bob.fred[0].george")
	require.NoError(t, err)
	require.Len(t, steps, 4)
	assert.Equal(t, Step{Kind: StepObject, Name: "bob"}, steps[0])
	assert.Equal(t, Step{Kind: StepObject, Name: "fred"}, steps[1])
	assert.Equal(t, Step{Kind: StepIndex, Index: 0}, steps[2])
	assert.Equal(t, Step{Kind: StepObject, Name: "george"}, steps[3])
}

func TestParsePath_BareIndex(t *testing.T) {
	steps, err := ParsePath("[3].name")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, Step{Kind: StepIndex, Index: 3}, steps[0])
	assert.Equal(t, Step{Kind: StepObject, Name: "name"}, steps[1])
}

func TestParsePath_MultiDimensional(t *testing.T) {
	steps, err := ParsePath("a[0][2]")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, Step{Kind: StepObject, Name: "a"}, steps[0])
	assert.Equal(t, Step{Kind: StepIndex, Index: 0}, steps[1])
	assert.Equal(t, Step{Kind: StepArrayOfArray, Index: 2}, steps[2])
}

func TestParsePath_AppendMarker(t *testing.T) {
	steps, err := ParsePath("events[]")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, Step{Kind: StepObject, Name: "events"}, steps[0])
	assert.True(t, steps[1].Append)
	assert.Equal(t, -1, steps[1].Index)
}

func TestParsePath_Empty(t *testing.T) {
	steps, err := ParsePath("")
	require.NoError(t, err)
	assert.Nil(t, steps)
}

func TestParsePath_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty segment middle", "a..b"},
		{"empty segment leading", ".a"},
		{"empty segment trailing", "a."},
		{"unbalanced open", "a[0"},
		{"unbalanced close", "a]0"},
		{"non-integer index", "a[x]"},
		{"negative index", "a[-1]"},
		{"text after bracket", "a[0]b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePath(tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrPathSyntax)
		})
	}
}

func TestParsePath_Idempotent(t *testing.T) {
	first, err := ParsePath("a[0].b[1].c")
	require.NoError(t, err)
	second, err := ParsePath("a[0].b[1].c")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFlattenBrackets(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a[0].b[1]", "a.0.b.1"},
		{"a.b", "a.b"},
		{"[0].c", "0.c"},
		{"a[0]", "a.0"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FlattenBrackets(tt.in), "flatten %q", tt.in)
	}
}
