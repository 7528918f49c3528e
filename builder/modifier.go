package builder

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/c360/mongosink/document"
	"github.com/c360/mongosink/errors"
	"github.com/c360/mongosink/mapping"
	"github.com/c360/mongosink/row"
)

// Prober answers the one-shot existence question used by modifier
// apply-policies: does any document match the query?
type Prober interface {
	Exists(ctx context.Context, query bson.D) (bool, error)
}

// leafMod records a primitive-leaf modifier pending emission.
type leafMod struct {
	op   string
	col  int
	json bool
}

// modifierBuckets is the row-local grouping state of the modifier builder.
// A fresh instance is created per row, so builds on distinct rows never
// share state.
type modifierBuckets struct {
	// $set operations that assemble complex array values, keyed by the dot
	// path to the array name.
	setArrayPaths []string
	setArrays     map[string][]*mapping.Field

	// $push operations that append complex structures, keyed by the dot
	// path to the array to push to.
	pushPaths []string
	pushes    map[string][]*mapping.Field

	// All other modifier updates, targeting primitive leaf fields.
	leafPaths []string
	leaves    map[string]leafMod
}

func newModifierBuckets() *modifierBuckets {
	return &modifierBuckets{
		setArrays: make(map[string][]*mapping.Field),
		pushes:    make(map[string][]*mapping.Field),
		leaves:    make(map[string]leafMod),
	}
}

func (m *modifierBuckets) addSetArray(arrayPath string, f *mapping.Field) {
	if _, ok := m.setArrays[arrayPath]; !ok {
		m.setArrayPaths = append(m.setArrayPaths, arrayPath)
	}
	m.setArrays[arrayPath] = append(m.setArrays[arrayPath], f)
}

func (m *modifierBuckets) addPush(arrayPath string, f *mapping.Field) {
	if _, ok := m.pushes[arrayPath]; !ok {
		m.pushPaths = append(m.pushPaths, arrayPath)
	}
	m.pushes[arrayPath] = append(m.pushes[arrayPath], f)
}

func (m *modifierBuckets) addLeaf(path string, mod leafMod) {
	if _, ok := m.leaves[path]; !ok {
		m.leafPaths = append(m.leafPaths, path)
	}
	m.leaves[path] = mod
}

// ModifierUpdate produces the update document for a modifier update/upsert:
// an object keyed by modifier operators, each holding dot-notation paths.
//
// Match fields are never duplicated into the update. On a modifier upsert
// the server materializes the query paths into the freshly created document
// before the modifier operators apply, which turns numeric query-path
// segments into literal field names and breaks subsequent $push against the
// same array; keeping match fields out of the update is what makes the rest
// of the modifier semantics sound.
//
// Fails when no mapping carries a modifier operation. Returns nil when every
// surviving value is null; the caller drops the row.
func (b *Builder) ModifierUpdate(ctx context.Context, meta *row.Meta, r row.Row, prober Prober) (*document.Object, error) {
	buckets := newModifierBuckets()

	haveUpdateFields := false
	haveNonNull := false

	// Apply-policies other than Insert&Update need to know whether the row
	// matches an existing document.
	checkForMatch := false
	for _, f := range b.fields {
		if f.IsMatchField {
			continue
		}
		if f.ModifierPolicy == mapping.PolicyInsert || f.ModifierPolicy == mapping.PolicyUpdate {
			checkForMatch = true
			break
		}
	}

	isUpdate := false
	if checkForMatch {
		query, err := b.Query(meta, r)
		if err != nil {
			return nil, err
		}
		// A nil query means no non-null match values: nothing can exist, so
		// the row is an insert and no probe is needed.
		if query != nil {
			if prober == nil {
				return nil, errors.WrapInvalid(
					fmt.Errorf("%w: apply-policy requires an existence probe", errors.ErrMissingConfig),
					"Builder", "ModifierUpdate", "prober check")
			}
			found, err := prober.Exists(ctx, query.BSON())
			if err != nil {
				return nil, errors.WrapTransient(err, "Builder", "ModifierUpdate", "existence probe")
			}
			isUpdate = found
		}
	}

	for _, f := range b.fields {
		if f.IsMatchField {
			continue
		}

		op := f.Op()
		if op == "" || op == mapping.NoModifier {
			continue
		}

		if checkForMatch {
			if isUpdate && f.ModifierPolicy == mapping.PolicyInsert {
				continue
			}
			if !isUpdate && f.ModifierPolicy == mapping.PolicyUpdate {
				continue
			}
		}

		haveUpdateFields = true

		idx := meta.IndexOf(f.Name())
		if idx < 0 {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %q", errors.ErrFieldNotFound, f.Name()),
				"Builder", "ModifierUpdate", "column lookup")
		}
		if meta.IsNull(r, idx) {
			continue
		}
		haveNonNull = true

		path := f.Path()

		// $push appends to the end of the named array, so a bracketed tail
		// on the authored path is redundant and gets stripped. When the
		// incoming name is appended the tail is kept as authored.
		if op == "$push" && strings.HasSuffix(path, "]") && !f.AppendIncomingName {
			path = path[:strings.LastIndex(path, "[")]
		}

		if f.AppendIncomingName {
			if path == "" {
				path = f.Name()
			} else {
				path = path + "." + f.Name()
			}
		}

		bracket := strings.Index(path, "[")
		switch {
		case op == "$set" && bracket > 0:
			// Many mappings may share the array path; group them and build
			// the array value once.
			arrayPath := path[:bracket]
			arraySpec := path[bracket:]
			sub, err := b.subField(f, arraySpec)
			if err != nil {
				return nil, err
			}
			buckets.addSetArray(arrayPath, sub)

		case op == "$push" && bracket > 0:
			// Any index in the path is ignored: $push always appends. The
			// structure to push is the sub-path after the first bracket
			// group.
			arrayPath := path[:bracket]
			structure := path[strings.Index(path, "]")+1:]
			structure = strings.TrimPrefix(structure, ".")
			if structure == "" {
				// nothing left to build: push the primitive straight onto
				// the array
				buckets.addLeaf(mapping.FlattenBrackets(arrayPath), leafMod{op: op, col: idx, json: f.ValueIsJSONLiteral})
				continue
			}
			sub, err := b.subField(f, structure)
			if err != nil {
				return nil, err
			}
			buckets.addPush(arrayPath, sub)

		default:
			buckets.addLeaf(mapping.FlattenBrackets(path), leafMod{op: op, col: idx, json: f.ValueIsJSONLiteral})
		}
	}

	update := document.NewObject()

	// Complex array $set values build as array-rooted subtrees.
	for _, arrayPath := range buckets.setArrayPaths {
		value, err := buildTree(buckets.setArrays[arrayPath], mapping.TopLevelArray, meta, r)
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		opObject(update, "$set").Set(arrayPath, value)
	}

	// Complex $push values build as record-rooted subtrees.
	for _, arrayPath := range buckets.pushPaths {
		value, err := buildTree(buckets.pushes[arrayPath], mapping.TopLevelRecord, meta, r)
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		opObject(update, "$push").Set(arrayPath, value)
	}

	// Primitive leaves emit directly under their operator.
	for _, path := range buckets.leafPaths {
		mod := buckets.leaves[path]
		val, written, err := document.Coerce(meta, r, mod.col, mod.json)
		if err != nil {
			return nil, err
		}
		if !written {
			continue
		}
		opObject(update, mod.op).Set(path, val)
	}

	if !haveUpdateFields {
		return nil, errors.WrapInvalid(errors.ErrNoModifierFields, "Builder", "ModifierUpdate", "modifier field check")
	}
	if !haveNonNull {
		return nil, nil
	}

	return update, nil
}

// subField derives the synthetic mapping used to build a bucketed complex
// value. The incoming name has already been appended into the sub-path, so
// the synthetic mapping never appends it again.
func (b *Builder) subField(f *mapping.Field, docPath string) (*mapping.Field, error) {
	sub := &mapping.Field{
		IncomingName:       f.IncomingName,
		DocPath:            docPath,
		AppendIncomingName: false,
		ValueIsJSONLiteral: f.ValueIsJSONLiteral,
	}
	if err := sub.Compile(b.vars); err != nil {
		return nil, errors.Wrap(err, "Builder", "subField", fmt.Sprintf("compile sub-path %q", docPath))
	}
	return sub, nil
}

// opObject returns the object grouping paths under a modifier operator,
// creating it on first use.
func opObject(update *document.Object, op string) *document.Object {
	if existing, ok := update.Get(op); ok {
		return existing.(*document.Object)
	}
	obj := document.NewObject()
	update.Set(op, obj)
	return obj
}
