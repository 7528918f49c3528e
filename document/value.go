package document

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/c360/mongosink/errors"
	"github.com/c360/mongosink/row"
)

// Coerce converts the cell at index i of a row into its document value.
//
// The second return reports whether a value was produced: null cells are
// omitted from documents (never written as explicit nulls), so they return
// (nil, false, nil). Serializable cells cannot be stored and fail with
// ErrUnsupportedCellType.
func Coerce(meta *row.Meta, r row.Row, i int, jsonLiteral bool) (any, bool, error) {
	if meta.IsNull(r, i) {
		return nil, false, nil
	}

	switch meta.Type(i) {
	case row.TypeString:
		val, err := meta.StringValue(r, i)
		if err != nil {
			return nil, false, err
		}
		if jsonLiteral {
			spliced, err := parseLiteral(val)
			if err != nil {
				return nil, false, errors.WrapInvalid(err, "Coerce", "parse",
					fmt.Sprintf("JSON literal in column %q", meta.Name(i)))
			}
			return spliced, true, nil
		}
		return val, true, nil

	case row.TypeBoolean:
		val, err := meta.BoolValue(r, i)
		if err != nil {
			return nil, false, err
		}
		return val, true, nil

	case row.TypeInteger:
		val, err := meta.IntValue(r, i)
		if err != nil {
			return nil, false, err
		}
		return val, true, nil

	case row.TypeNumber:
		val, err := meta.FloatValue(r, i)
		if err != nil {
			return nil, false, err
		}
		return val, true, nil

	case row.TypeDate:
		val, err := meta.DateValue(r, i)
		if err != nil {
			return nil, false, err
		}
		return bson.NewDateTimeFromTime(val), true, nil

	case row.TypeBinary:
		val, err := meta.BinaryValue(r, i)
		if err != nil {
			return nil, false, err
		}
		return bson.Binary{Subtype: 0x00, Data: val}, true, nil

	case row.TypeBigNumber:
		// Stored as the decimal string; callers round-trip.
		val, err := meta.BigNumberValue(r, i)
		if err != nil {
			return nil, false, err
		}
		return val, true, nil

	case row.TypeSerializable:
		return nil, false, errors.WrapInvalid(
			fmt.Errorf("%w: column %q", errors.ErrUnsupportedCellType, meta.Name(i)),
			"Coerce", "convert", "cell type check")

	default:
		return nil, false, errors.WrapInvalid(
			fmt.Errorf("column %q has undeclared type", meta.Name(i)),
			"Coerce", "convert", "cell type check")
	}
}

// parseLiteral parses an extended-JSON document literal. Object literals are
// the common case; array literals are accepted as well.
func parseLiteral(s string) (any, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(s), false, &doc); err == nil {
		return doc, nil
	}

	var arr bson.A
	wrapped := []byte(`{"v":` + s + `}`)
	var holder struct {
		V bson.A `bson:"v"`
	}
	if err := bson.UnmarshalExtJSON(wrapped, false, &holder); err != nil {
		return nil, err
	}
	arr = holder.V
	return arr, nil
}
