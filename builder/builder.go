// Package builder walks typed rows through a compiled field-mapping schema
// and produces the three document artifacts handed to the writer: full
// insert/upsert documents, query documents, and modifier update documents.
package builder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360/mongosink/document"
	"github.com/c360/mongosink/errors"
	"github.com/c360/mongosink/mapping"
	"github.com/c360/mongosink/row"
)

// Builder holds a compiled mapping schema. It is immutable after New and
// safe to share across workers; all per-row state is local to each call.
type Builder struct {
	fields   []*mapping.Field
	topLevel mapping.TopLevel
	vars     row.Interpolator
	logger   *slog.Logger
}

// New compiles the mapping set and classifies the top-level document
// structure. Inconsistent top-level classification is a hard error, surfaced
// here once rather than per row.
func New(fields []*mapping.Field, vars row.Interpolator, logger *slog.Logger) (*Builder, error) {
	if len(fields) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Builder", "New", "field mapping check")
	}
	if vars == nil {
		vars = row.NoVars{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	compiled, err := mapping.CompileAll(fields, vars)
	if err != nil {
		return nil, err
	}

	topLevel := mapping.Classify(compiled)
	if topLevel == mapping.TopLevelInconsistent {
		return nil, errors.WrapFatal(errors.ErrInconsistentTopLevel, "Builder", "New", "top-level classification")
	}

	for _, f := range compiled {
		// A bracketed tail combined with append is not stripped: it stays in
		// the resolved $push path, which then routes through the
		// complex-structure bucket instead of pushing the value itself.
		if f.Op() == "$push" && f.AppendIncomingName && strings.HasSuffix(f.Path(), "]") {
			logger.Warn("$push path keeps bracketed tail because the incoming name is appended",
				"incoming_field", f.Name(),
				"path", f.Path())
		}
	}

	return &Builder{
		fields:   compiled,
		topLevel: topLevel,
		vars:     vars,
		logger:   logger,
	}, nil
}

// TopLevel returns the classified root structure.
func (b *Builder) TopLevel() mapping.TopLevel { return b.topLevel }

// Fields returns the compiled mapping set.
func (b *Builder) Fields() []*mapping.Field { return b.fields }

// Document materializes the complete insert/upsert document for a row. Match
// fields contribute only to the query document and are skipped here. The
// result is a *document.Object or *document.List per the top-level
// classification, or nil when every relevant cell is null (the caller drops
// the row).
func (b *Builder) Document(meta *row.Meta, r row.Row) (any, error) {
	return buildTree(b.fields, b.topLevel, meta, r)
}

// buildTree walks each non-match mapping through its compiled steps,
// materializing nodes on demand. The first mapping to create a node fixes
// its kind for the rest of the row; later mappings that disagree fail.
func buildTree(fields []*mapping.Field, topLevel mapping.TopLevel, meta *row.Meta, r row.Row) (any, error) {
	var root any
	if topLevel == mapping.TopLevelArray {
		root = document.NewList()
	} else {
		root = document.NewObject()
	}

	haveNonNull := false
	for _, f := range fields {
		if f.IsMatchField {
			continue
		}
		wrote, err := writeField(root, f, meta, r)
		if err != nil {
			return nil, errors.Wrap(err, "Builder", "Document", fmt.Sprintf("field %q", f.Name()))
		}
		haveNonNull = haveNonNull || wrote
	}

	if !haveNonNull {
		return nil, nil
	}
	return root, nil
}

// writeField resolves one mapping against the row and writes the coerced
// value into the tree. Null cells write nothing and materialize nothing.
func writeField(root any, f *mapping.Field, meta *row.Meta, r row.Row) (bool, error) {
	idx := meta.IndexOf(f.Name())
	if idx < 0 {
		return false, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrFieldNotFound, f.Name()),
			"Builder", "writeField", "column lookup")
	}

	val, written, err := document.Coerce(meta, r, idx, f.ValueIsJSONLiteral)
	if err != nil {
		return false, err
	}
	if !written {
		return false, nil
	}

	steps := f.Steps()
	if len(steps) == 0 {
		// Empty path with append: leaf at root under the incoming name.
		obj, ok := root.(*document.Object)
		if !ok {
			return false, errors.WrapInvalid(errors.ErrFieldNotRecord, "Builder", "writeField", "root kind check")
		}
		obj.Set(f.Name(), val)
		return true, nil
	}

	cur := root
	for si, s := range steps {
		last := si == len(steps)-1

		switch s.Kind {
		case mapping.StepObject:
			obj, ok := cur.(*document.Object)
			if !ok {
				return false, errors.WrapInvalid(
					fmt.Errorf("%w: at %q", errors.ErrFieldNotRecord, s.Name),
					"Builder", "writeField", "node kind check")
			}
			if last {
				if f.AppendIncomingName {
					child, err := ensureObject(obj, s.Name)
					if err != nil {
						return false, err
					}
					child.Set(f.Name(), val)
				} else {
					obj.Set(s.Name, val)
				}
				return true, nil
			}
			if steps[si+1].Kind == mapping.StepObject {
				cur, err = ensureObject(obj, s.Name)
			} else {
				cur, err = ensureList(obj, s.Name)
			}
			if err != nil {
				return false, err
			}

		case mapping.StepIndex, mapping.StepArrayOfArray:
			if s.Append {
				return false, errors.WrapInvalid(
					fmt.Errorf("%w: append marker [] is only valid in $push paths", errors.ErrPathSyntax),
					"Builder", "writeField", "append marker check")
			}
			list, ok := cur.(*document.List)
			if !ok {
				return false, errors.WrapInvalid(
					fmt.Errorf("%w: at index %d", errors.ErrFieldNotArray, s.Index),
					"Builder", "writeField", "node kind check")
			}
			if last {
				if f.AppendIncomingName {
					child, err := ensureObjectAt(list, s.Index)
					if err != nil {
						return false, err
					}
					child.Set(f.Name(), val)
				} else {
					list.Set(s.Index, val)
				}
				return true, nil
			}
			if steps[si+1].Kind == mapping.StepObject {
				cur, err = ensureObjectAt(list, s.Index)
			} else {
				cur, err = ensureListAt(list, s.Index)
			}
			if err != nil {
				return false, err
			}
		}
	}

	return true, nil
}

// ensureObject returns the object child under name, creating it when
// missing. An existing child of a different kind is a conflict.
func ensureObject(obj *document.Object, name string) (*document.Object, error) {
	existing, ok := obj.Get(name)
	if !ok {
		child := document.NewObject()
		obj.Set(name, child)
		return child, nil
	}
	child, ok := existing.(*document.Object)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrFieldNotRecord, name),
			"Builder", "ensureObject", "node kind check")
	}
	return child, nil
}

// ensureList returns the list child under name, creating it when missing.
func ensureList(obj *document.Object, name string) (*document.List, error) {
	existing, ok := obj.Get(name)
	if !ok {
		child := document.NewList()
		obj.Set(name, child)
		return child, nil
	}
	child, ok := existing.(*document.List)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrFieldNotArray, name),
			"Builder", "ensureList", "node kind check")
	}
	return child, nil
}

// ensureObjectAt returns the object element at index i, creating it when missing.
func ensureObjectAt(list *document.List, i int) (*document.Object, error) {
	existing := list.Get(i)
	if existing == nil {
		child := document.NewObject()
		list.Set(i, child)
		return child, nil
	}
	child, ok := existing.(*document.Object)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: element %d", errors.ErrFieldNotRecord, i),
			"Builder", "ensureObjectAt", "node kind check")
	}
	return child, nil
}

// ensureListAt returns the list element at index i, creating it when missing.
func ensureListAt(list *document.List, i int) (*document.List, error) {
	existing := list.Get(i)
	if existing == nil {
		child := document.NewList()
		list.Set(i, child)
		return child, nil
	}
	child, ok := existing.(*document.List)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: element %d", errors.ErrFieldNotArray, i),
			"Builder", "ensureListAt", "node kind check")
	}
	return child, nil
}
