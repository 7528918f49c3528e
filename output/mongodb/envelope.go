package mongodb

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/mongosink/errors"
	"github.com/c360/mongosink/row"
)

// columnDef declares one column of a row envelope.
type columnDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// rowEnvelope is the wire format rows arrive in on NATS subjects: declared
// column metadata plus an ordered value tuple.
type rowEnvelope struct {
	Columns []columnDef `json:"columns"`
	Values  []any       `json:"values"`
}

// decodeRow parses a row envelope into the row contract consumed by the
// builders. JSON's limited value types are widened to the declared cell
// types: integers from JSON numbers, dates from RFC 3339 strings, binary
// from base64 strings.
func decodeRow(data []byte) (*row.Meta, row.Row, error) {
	var envelope rowEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, nil, errors.WrapInvalid(err, "Output", "decodeRow", "envelope unmarshal")
	}
	if len(envelope.Values) != len(envelope.Columns) {
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("envelope has %d values for %d columns", len(envelope.Values), len(envelope.Columns)),
			"Output", "decodeRow", "shape check")
	}

	meta := row.NewMeta()
	r := make(row.Row, len(envelope.Values))

	for i, col := range envelope.Columns {
		cellType := row.ParseCellType(col.Type)
		if cellType == row.TypeNone {
			return nil, nil, errors.WrapInvalid(
				fmt.Errorf("column %q has unknown type %q", col.Name, col.Type),
				"Output", "decodeRow", "column type check")
		}
		meta.AddColumn(col.Name, cellType)

		raw := envelope.Values[i]
		if raw == nil {
			continue
		}

		cell, err := decodeCell(raw, cellType)
		if err != nil {
			return nil, nil, errors.WrapInvalid(err, "Output", "decodeRow",
				fmt.Sprintf("column %q", col.Name))
		}
		r[i] = cell
	}

	return meta, r, nil
}

// decodeCell widens one JSON value to its declared cell type.
func decodeCell(raw any, t row.CellType) (any, error) {
	switch t {
	case row.TypeString, row.TypeBigNumber:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return s, nil

	case row.TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", raw)
		}
		return b, nil

	case row.TypeInteger:
		f, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", raw)
		}
		return int64(f), nil

	case row.TypeNumber:
		f, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", raw)
		}
		return f, nil

	case row.TypeDate:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected RFC 3339 string, got %T", raw)
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return ts, nil

	case row.TypeBinary:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected base64 string, got %T", raw)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, err
		}
		return b, nil

	case row.TypeSerializable:
		// carried through so coercion can reject it with the proper error
		return raw, nil

	default:
		return nil, fmt.Errorf("unsupported cell type %v", t)
	}
}
