package row

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeta_IndexOf(t *testing.T) {
	meta := NewMeta()
	meta.AddColumn("a", TypeString)
	meta.AddColumn("b", TypeInteger)

	assert.Equal(t, 0, meta.IndexOf("a"))
	assert.Equal(t, 1, meta.IndexOf("b"))
	assert.Equal(t, -1, meta.IndexOf("missing"))
}

func TestMeta_FirstColumnWinsOnDuplicateName(t *testing.T) {
	meta := NewMeta()
	meta.AddColumn("a", TypeString)
	meta.AddColumn("a", TypeInteger)

	assert.Equal(t, 0, meta.IndexOf("a"))
	assert.Equal(t, 2, meta.Len())
}

func TestMeta_IsNull(t *testing.T) {
	meta := NewMeta()
	meta.AddColumn("a", TypeString)
	meta.AddColumn("b", TypeString)

	r := Row{"x", nil}
	assert.False(t, meta.IsNull(r, 0))
	assert.True(t, meta.IsNull(r, 1))
	assert.True(t, meta.IsNull(r, 5), "out of range reads as null")
}

func TestMeta_TypedAccessors(t *testing.T) {
	meta := NewMeta()
	meta.AddColumn("s", TypeString)
	meta.AddColumn("b", TypeBoolean)
	meta.AddColumn("i", TypeInteger)
	meta.AddColumn("f", TypeNumber)
	meta.AddColumn("d", TypeDate)
	meta.AddColumn("bin", TypeBinary)

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r := Row{"hello", true, int64(9), 2.5, ts, []byte{0xFF}}

	s, err := meta.StringValue(r, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	b, err := meta.BoolValue(r, 1)
	require.NoError(t, err)
	assert.True(t, b)

	i, err := meta.IntValue(r, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(9), i)

	f, err := meta.FloatValue(r, 3)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	d, err := meta.DateValue(r, 4)
	require.NoError(t, err)
	assert.Equal(t, ts, d)

	bin, err := meta.BinaryValue(r, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, bin)
}

func TestMeta_StringValueCrossType(t *testing.T) {
	meta := NewMeta()
	meta.AddColumn("i", TypeInteger)
	meta.AddColumn("b", TypeBoolean)

	r := Row{int64(42), false}

	s, err := meta.StringValue(r, 0)
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	s, err = meta.StringValue(r, 1)
	require.NoError(t, err)
	assert.Equal(t, "false", s)
}

func TestParseCellType(t *testing.T) {
	assert.Equal(t, TypeString, ParseCellType("string"))
	assert.Equal(t, TypeInteger, ParseCellType("integer"))
	assert.Equal(t, TypeBoolean, ParseCellType("bool"))
	assert.Equal(t, TypeNone, ParseCellType("mystery"))
}

func TestMapVars_Interpolate(t *testing.T) {
	vars := MapVars{"name": "orders", "env": "prod"}

	assert.Equal(t, "orders.prod.rows", vars.Interpolate("${name}.${env}.rows"))
	assert.Equal(t, "plain", vars.Interpolate("plain"))
	assert.Equal(t, "${missing}", vars.Interpolate("${missing}"), "unknown references stay intact")
	assert.Equal(t, "${unclosed", vars.Interpolate("${unclosed"))
}

func TestNoVars_Interpolate(t *testing.T) {
	assert.Equal(t, "${anything}", NoVars{}.Interpolate("${anything}"))
}

func TestEnvVars_Interpolate(t *testing.T) {
	t.Setenv("MONGOSINK_TEST_VAR", "value")
	assert.Equal(t, "value", EnvVars{}.Interpolate("${MONGOSINK_TEST_VAR}"))
}
