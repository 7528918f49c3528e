package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/c360/mongosink/errors"
	"github.com/c360/mongosink/mapping"
	"github.com/c360/mongosink/row"
)

func TestQuery_FlatMatchDocument(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "id", DocPath: "", AppendIncomingName: true, IsMatchField: true},
		&mapping.Field{IncomingName: "name", DocPath: "person", AppendIncomingName: true},
	)

	meta, r := testRow(t, stringCols("id", "name"), "42", "bob")
	query, err := b.Query(meta, r)
	require.NoError(t, err)

	want := bson.D{{Key: "id", Value: "42"}}
	assert.Equal(t, want, query.BSON())
}

func TestQuery_FlattensArrayMarkers(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "v", DocPath: "a[0].b[1]", AppendIncomingName: false, IsMatchField: true},
		&mapping.Field{IncomingName: "w", DocPath: "c", AppendIncomingName: false},
	)

	meta, r := testRow(t, stringCols("v", "w"), "x", "y")
	query, err := b.Query(meta, r)
	require.NoError(t, err)

	want := bson.D{{Key: "a.0.b.1", Value: "x"}}
	assert.Equal(t, want, query.BSON())
}

func TestQuery_AppendsIncomingNameToPath(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "id", DocPath: "keys[0]", AppendIncomingName: true, IsMatchField: true},
		&mapping.Field{IncomingName: "v", DocPath: "c", AppendIncomingName: false},
	)

	meta, r := testRow(t, stringCols("id", "v"), "42", "x")
	query, err := b.Query(meta, r)
	require.NoError(t, err)

	want := bson.D{{Key: "keys.0.id", Value: "42"}}
	assert.Equal(t, want, query.BSON())
}

func TestQuery_NoMatchFieldsFails(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "name", DocPath: "person", AppendIncomingName: true},
	)

	meta, r := testRow(t, stringCols("name"), "bob")
	_, err := b.Query(meta, r)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoMatchFields)
}

func TestQuery_AllNullMatchValuesReturnsNil(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "id", DocPath: "", AppendIncomingName: true, IsMatchField: true},
		&mapping.Field{IncomingName: "name", DocPath: "person", AppendIncomingName: true},
	)

	meta, r := testRow(t, stringCols("id", "name"), nil, "bob")
	query, err := b.Query(meta, r)
	require.NoError(t, err)
	assert.Nil(t, query)
}

func TestQuery_NullMatchCellIgnored(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "id", DocPath: "", AppendIncomingName: true, IsMatchField: true},
		&mapping.Field{IncomingName: "region", DocPath: "", AppendIncomingName: true, IsMatchField: true},
		&mapping.Field{IncomingName: "name", DocPath: "person", AppendIncomingName: true},
	)

	meta, r := testRow(t, stringCols("id", "region", "name"), "42", nil, "bob")
	query, err := b.Query(meta, r)
	require.NoError(t, err)

	want := bson.D{{Key: "id", Value: "42"}}
	assert.Equal(t, want, query.BSON())
}

func TestQuery_TypedMatchValues(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "count", DocPath: "stats.count", AppendIncomingName: false, IsMatchField: true},
		&mapping.Field{IncomingName: "name", DocPath: "n", AppendIncomingName: false},
	)

	meta := row.NewMeta()
	meta.AddColumn("count", row.TypeInteger)
	meta.AddColumn("name", row.TypeString)
	r := row.Row{int64(7), "x"}

	query, err := b.Query(meta, r)
	require.NoError(t, err)

	want := bson.D{{Key: "stats.count", Value: int64(7)}}
	assert.Equal(t, want, query.BSON())
}
