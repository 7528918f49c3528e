package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mongosink/errors"
	"github.com/c360/mongosink/row"
)

func TestField_Compile(t *testing.T) {
	f := &Field{
		IncomingName:       "field1",
		DocPath:            "a.b[0]",
		AppendIncomingName: true,
	}
	require.NoError(t, f.Compile(nil))

	assert.Equal(t, "field1", f.Name())
	assert.Equal(t, "a.b[0]", f.Path())
	require.Len(t, f.Steps(), 3)
}

func TestField_CompileInterpolates(t *testing.T) {
	vars := row.MapVars{"col": "field1", "root": "data"}

	f := &Field{
		IncomingName: "${col}",
		DocPath:      "${root}.values",
	}
	require.NoError(t, f.Compile(vars))

	assert.Equal(t, "field1", f.Name())
	assert.Equal(t, "data.values", f.Path())
}

func TestField_CompileEmptyPathRequiresAppend(t *testing.T) {
	f := &Field{IncomingName: "field1", DocPath: "", AppendIncomingName: false}
	err := f.Compile(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoLeafName)

	f = &Field{IncomingName: "field1", DocPath: "", AppendIncomingName: true}
	require.NoError(t, f.Compile(nil))
	assert.Empty(t, f.Steps())
}

func TestField_CompileRequiresIncomingName(t *testing.T) {
	f := &Field{IncomingName: "", DocPath: "a.b"}
	err := f.Compile(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestCompileAll_LeavesInputUntouched(t *testing.T) {
	original := []*Field{
		{IncomingName: "f1", DocPath: "a.b", AppendIncomingName: true},
		{IncomingName: "f2", DocPath: "a.c", AppendIncomingName: true},
	}

	compiled, err := CompileAll(original, nil)
	require.NoError(t, err)
	require.Len(t, compiled, 2)

	assert.Nil(t, original[0].Steps())
	assert.NotNil(t, compiled[0].Steps())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyInsertUpdate, p)

	p, err = ParsePolicy("Insert&Update")
	require.NoError(t, err)
	assert.Equal(t, PolicyInsertUpdate, p)

	p, err = ParsePolicy("Insert")
	require.NoError(t, err)
	assert.Equal(t, PolicyInsert, p)

	p, err = ParsePolicy("Update")
	require.NoError(t, err)
	assert.Equal(t, PolicyUpdate, p)

	_, err = ParsePolicy("Sometimes")
	assert.Error(t, err)
}
