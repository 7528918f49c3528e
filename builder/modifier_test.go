package builder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/c360/mongosink/errors"
	"github.com/c360/mongosink/mapping"
	"github.com/c360/mongosink/row"
)

// fakeProber answers the existence probe from canned state and records the
// queries it saw.
type fakeProber struct {
	found   bool
	err     error
	queries []bson.D
}

func (p *fakeProber) Exists(_ context.Context, query bson.D) (bool, error) {
	p.queries = append(p.queries, query)
	return p.found, p.err
}

func TestModifierUpdate_SetComplexArray(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "field1", DocPath: "bob.fred[0].george", AppendIncomingName: true, ModifierOp: "$set"},
		&mapping.Field{IncomingName: "field2", DocPath: "bob.fred[0].george", AppendIncomingName: true, ModifierOp: "$set"},
	)

	meta, r := testRow(t, stringCols("field1", "field2"), "value1", "value2")
	update, err := b.ModifierUpdate(context.Background(), meta, r, nil)
	require.NoError(t, err)

	want := bson.D{{Key: "$set", Value: bson.D{
		{Key: "bob.fred", Value: bson.A{bson.D{
			{Key: "george", Value: bson.D{
				{Key: "field1", Value: "value1"},
				{Key: "field2", Value: "value2"},
			}},
		}}},
	}}}
	assert.Equal(t, want, update.BSON())
}

func TestModifierUpdate_PrimitiveLeaf(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "qty", DocPath: "stats.count", AppendIncomingName: false, ModifierOp: "$inc"},
	)

	meta := row.NewMeta()
	meta.AddColumn("qty", row.TypeInteger)
	r := row.Row{int64(3)}

	update, err := b.ModifierUpdate(context.Background(), meta, r, nil)
	require.NoError(t, err)

	want := bson.D{{Key: "$inc", Value: bson.D{{Key: "stats.count", Value: int64(3)}}}}
	assert.Equal(t, want, update.BSON())
}

func TestModifierUpdate_PrimitiveLeafFlattensBrackets(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "v", DocPath: "a[0].b[1]", AppendIncomingName: false, ModifierOp: "$min"},
	)

	meta, r := testRow(t, stringCols("v"), "x")
	update, err := b.ModifierUpdate(context.Background(), meta, r, nil)
	require.NoError(t, err)

	want := bson.D{{Key: "$min", Value: bson.D{{Key: "a.0.b.1", Value: "x"}}}}
	assert.Equal(t, want, update.BSON())
}

func TestModifierUpdate_PushComplexStructure(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "a", DocPath: "events[].kind", AppendIncomingName: false, ModifierOp: "$push"},
		&mapping.Field{IncomingName: "b", DocPath: "events[].ts", AppendIncomingName: false, ModifierOp: "$push"},
	)

	ts := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	meta := row.NewMeta()
	meta.AddColumn("a", row.TypeString)
	meta.AddColumn("b", row.TypeDate)
	r := row.Row{"login", ts}

	update, err := b.ModifierUpdate(context.Background(), meta, r, nil)
	require.NoError(t, err)

	want := bson.D{{Key: "$push", Value: bson.D{
		{Key: "events", Value: bson.D{
			{Key: "kind", Value: "login"},
			{Key: "ts", Value: bson.NewDateTimeFromTime(ts)},
		}},
	}}}
	assert.Equal(t, want, update.BSON())
}

func TestModifierUpdate_PushStripsTrailingBrackets(t *testing.T) {
	// the trailing group is redundant for $push; the remaining path keeps
	// its own markers
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "v", DocPath: "a[0].b[1]", AppendIncomingName: false, ModifierOp: "$push"},
	)

	meta, r := testRow(t, stringCols("v"), "x")
	update, err := b.ModifierUpdate(context.Background(), meta, r, nil)
	require.NoError(t, err)

	want := bson.D{{Key: "$push", Value: bson.D{
		{Key: "a", Value: bson.D{{Key: "b", Value: "x"}}},
	}}}
	assert.Equal(t, want, update.BSON())
}

func TestModifierUpdate_PushPrimitive(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "tag", DocPath: "tags[]", AppendIncomingName: false, ModifierOp: "$push"},
	)

	meta, r := testRow(t, stringCols("tag"), "urgent")
	update, err := b.ModifierUpdate(context.Background(), meta, r, nil)
	require.NoError(t, err)

	want := bson.D{{Key: "$push", Value: bson.D{{Key: "tags", Value: "urgent"}}}}
	assert.Equal(t, want, update.BSON())
}

func TestModifierUpdate_MatchFieldsNeverIncluded(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "id", DocPath: "", AppendIncomingName: true, IsMatchField: true},
		&mapping.Field{IncomingName: "name", DocPath: "", AppendIncomingName: true, ModifierOp: "$set"},
	)

	meta, r := testRow(t, stringCols("id", "name"), "42", "bob")
	update, err := b.ModifierUpdate(context.Background(), meta, r, nil)
	require.NoError(t, err)

	want := bson.D{{Key: "$set", Value: bson.D{{Key: "name", Value: "bob"}}}}
	assert.Equal(t, want, update.BSON())
}

func TestModifierUpdate_OperatorNAIgnored(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "name", DocPath: "", AppendIncomingName: true, ModifierOp: "$set"},
		&mapping.Field{IncomingName: "noise", DocPath: "", AppendIncomingName: true, ModifierOp: mapping.NoModifier},
	)

	meta, r := testRow(t, stringCols("name", "noise"), "bob", "zzz")
	update, err := b.ModifierUpdate(context.Background(), meta, r, nil)
	require.NoError(t, err)

	want := bson.D{{Key: "$set", Value: bson.D{{Key: "name", Value: "bob"}}}}
	assert.Equal(t, want, update.BSON())
}

func TestModifierUpdate_NoModifierFieldsFails(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "noise", DocPath: "", AppendIncomingName: true, ModifierOp: mapping.NoModifier},
	)

	meta, r := testRow(t, stringCols("noise"), "zzz")
	_, err := b.ModifierUpdate(context.Background(), meta, r, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoModifierFields)
}

func TestModifierUpdate_AllNullReturnsNil(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "name", DocPath: "", AppendIncomingName: true, ModifierOp: "$set"},
	)

	meta, r := testRow(t, stringCols("name"), nil)
	update, err := b.ModifierUpdate(context.Background(), meta, r, nil)
	require.NoError(t, err)
	assert.Nil(t, update)
}

func TestModifierUpdate_InsertPolicySkippedOnUpdate(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "id", DocPath: "", AppendIncomingName: true, IsMatchField: true},
		&mapping.Field{IncomingName: "created", DocPath: "", AppendIncomingName: true, ModifierOp: "$set", ModifierPolicy: mapping.PolicyInsert},
		&mapping.Field{IncomingName: "updated", DocPath: "", AppendIncomingName: true, ModifierOp: "$set", ModifierPolicy: mapping.PolicyUpdate},
	)

	meta, r := testRow(t, stringCols("id", "created", "updated"), "42", "c", "u")

	// record exists: Insert-policy fields skip, Update-policy fields apply
	prober := &fakeProber{found: true}
	update, err := b.ModifierUpdate(context.Background(), meta, r, prober)
	require.NoError(t, err)
	require.Len(t, prober.queries, 1)
	assert.Equal(t, bson.D{{Key: "id", Value: "42"}}, prober.queries[0])

	want := bson.D{{Key: "$set", Value: bson.D{{Key: "updated", Value: "u"}}}}
	assert.Equal(t, want, update.BSON())
}

func TestModifierUpdate_UpdatePolicySkippedOnInsert(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "id", DocPath: "", AppendIncomingName: true, IsMatchField: true},
		&mapping.Field{IncomingName: "created", DocPath: "", AppendIncomingName: true, ModifierOp: "$set", ModifierPolicy: mapping.PolicyInsert},
		&mapping.Field{IncomingName: "updated", DocPath: "", AppendIncomingName: true, ModifierOp: "$set", ModifierPolicy: mapping.PolicyUpdate},
	)

	meta, r := testRow(t, stringCols("id", "created", "updated"), "42", "c", "u")

	prober := &fakeProber{found: false}
	update, err := b.ModifierUpdate(context.Background(), meta, r, prober)
	require.NoError(t, err)

	want := bson.D{{Key: "$set", Value: bson.D{{Key: "created", Value: "c"}}}}
	assert.Equal(t, want, update.BSON())
}

func TestModifierUpdate_NilQuerySkipsProbe(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "id", DocPath: "", AppendIncomingName: true, IsMatchField: true},
		&mapping.Field{IncomingName: "created", DocPath: "", AppendIncomingName: true, ModifierOp: "$set", ModifierPolicy: mapping.PolicyInsert},
	)

	// null match value: treated as insert without probing
	meta, r := testRow(t, stringCols("id", "created"), nil, "c")
	prober := &fakeProber{found: true}
	update, err := b.ModifierUpdate(context.Background(), meta, r, prober)
	require.NoError(t, err)
	assert.Empty(t, prober.queries)

	want := bson.D{{Key: "$set", Value: bson.D{{Key: "created", Value: "c"}}}}
	assert.Equal(t, want, update.BSON())
}

func TestModifierUpdate_ProbeNotIssuedWithoutPolicies(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "id", DocPath: "", AppendIncomingName: true, IsMatchField: true},
		&mapping.Field{IncomingName: "name", DocPath: "", AppendIncomingName: true, ModifierOp: "$set"},
	)

	meta, r := testRow(t, stringCols("id", "name"), "42", "bob")
	prober := &fakeProber{found: true}
	_, err := b.ModifierUpdate(context.Background(), meta, r, prober)
	require.NoError(t, err)
	assert.Empty(t, prober.queries)
}

func TestModifierUpdate_MixedOperators(t *testing.T) {
	b := mustBuilder(t,
		&mapping.Field{IncomingName: "name", DocPath: "", AppendIncomingName: true, ModifierOp: "$set"},
		&mapping.Field{IncomingName: "qty", DocPath: "stats.count", AppendIncomingName: false, ModifierOp: "$inc"},
	)

	meta := row.NewMeta()
	meta.AddColumn("name", row.TypeString)
	meta.AddColumn("qty", row.TypeInteger)
	r := row.Row{"bob", int64(2)}

	update, err := b.ModifierUpdate(context.Background(), meta, r, nil)
	require.NoError(t, err)

	got := update.BSON()
	require.Len(t, got, 2)

	// top-level keys are exactly the distinct surviving operators
	keys := []string{got[0].Key, got[1].Key}
	assert.Contains(t, keys, "$set")
	assert.Contains(t, keys, "$inc")
}
