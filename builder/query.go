package builder

import (
	"fmt"

	"github.com/c360/mongosink/document"
	"github.com/c360/mongosink/errors"
	"github.com/c360/mongosink/mapping"
	"github.com/c360/mongosink/row"
)

// Query produces the match document for an update/upsert from the mappings
// marked as match fields. Array markers are flattened to dot notation
// (a[0].b -> a.0.b) because query documents reach into embedded structures
// with dotted keys.
//
// Fails when the mapping set has no match fields at all. Returns nil when
// every match cell is null; the caller drops the row.
func (b *Builder) Query(meta *row.Meta, r row.Row) (*document.Object, error) {
	query := document.NewObject()

	haveMatchFields := false
	haveNonNull := false

	for _, f := range b.fields {
		if !f.IsMatchField {
			continue
		}
		haveMatchFields = true

		idx := meta.IndexOf(f.Name())
		if idx < 0 {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %q", errors.ErrFieldNotFound, f.Name()),
				"Builder", "Query", "column lookup")
		}

		val, written, err := document.Coerce(meta, r, idx, f.ValueIsJSONLiteral)
		if err != nil {
			return nil, errors.Wrap(err, "Builder", "Query", fmt.Sprintf("field %q", f.Name()))
		}
		if !written {
			// ignore null match cells
			continue
		}
		haveNonNull = true

		query.Set(mapping.FlattenBrackets(resolvePath(f)), val)
	}

	if !haveMatchFields {
		return nil, errors.WrapInvalid(errors.ErrNoMatchFields, "Builder", "Query", "match field check")
	}
	if !haveNonNull {
		// nothing to match against for this row
		return nil, nil
	}

	return query, nil
}

// resolvePath returns the document path with the incoming name appended when
// the mapping asks for it.
func resolvePath(f *mapping.Field) string {
	path := f.Path()
	if !f.AppendIncomingName {
		return path
	}
	if path == "" {
		return f.Name()
	}
	return path + "." + f.Name()
}
