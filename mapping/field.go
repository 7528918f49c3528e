package mapping

import (
	"fmt"

	"github.com/c360/mongosink/errors"
	"github.com/c360/mongosink/row"
)

// Policy declares when a modifier operation applies relative to the
// insert-vs-update decision made by the existence probe.
type Policy int

const (
	// PolicyInsertUpdate applies the operation on both insert and update.
	PolicyInsertUpdate Policy = iota
	// PolicyInsert applies the operation only when the row inserts a new document.
	PolicyInsert
	// PolicyUpdate applies the operation only when the row updates an existing document.
	PolicyUpdate
)

// String returns the configuration spelling of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyInsert:
		return "Insert"
	case PolicyUpdate:
		return "Update"
	default:
		return "Insert&Update"
	}
}

// ParsePolicy maps a configuration string to a Policy. The empty string
// defaults to Insert&Update.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "Insert&Update":
		return PolicyInsertUpdate, nil
	case "Insert":
		return PolicyInsert, nil
	case "Update":
		return PolicyUpdate, nil
	default:
		return PolicyInsertUpdate, errors.WrapInvalid(
			fmt.Errorf("%w: unknown modifier policy %q", errors.ErrInvalidConfig, s),
			"ParsePolicy", "parse", "policy check")
	}
}

// NoModifier is the ModifierOp value for fields that do not participate in
// modifier updates.
const NoModifier = "N/A"

// Field binds one incoming row column to a document path. The exported
// fields are the user-authored mapping; Compile resolves variables and
// parses the path, after which the Field is immutable and safe to share
// across workers.
type Field struct {
	// IncomingName is the source column name; variables may be interpolated.
	IncomingName string `json:"incoming_name"`

	// DocPath is the dot-notation path into the target document. May be
	// empty; may contain array markers [i] / [].
	DocPath string `json:"doc_path"`

	// AppendIncomingName appends the incoming column name as the final path
	// segment. When false, DocPath already identifies the leaf.
	AppendIncomingName bool `json:"append_incoming_name"`

	// ValueIsJSONLiteral parses the string cell as a document literal and
	// splices it in instead of storing the raw string.
	ValueIsJSONLiteral bool `json:"value_is_json_literal"`

	// IsMatchField marks the mapping as part of the query half of
	// updates/upserts.
	IsMatchField bool `json:"is_match_field"`

	// ModifierOp is a modifier operator ($set, $push, $inc, ...) or
	// NoModifier. Only the modifier builder consults it.
	ModifierOp string `json:"modifier_op"`

	// ModifierPolicy declares the apply-policy for the modifier operation.
	ModifierPolicy Policy `json:"modifier_policy"`

	// Compiled state, populated by Compile.
	name  string
	path  string
	op    string
	steps []Step
}

// Compile interpolates variables and parses the document path. builder.New
// compiles copies of the mappings it is given (see CompileAll), so callers
// do not need to compile them first.
func (f *Field) Compile(vars row.Interpolator) error {
	if vars == nil {
		vars = row.NoVars{}
	}

	f.name = vars.Interpolate(f.IncomingName)
	f.path = vars.Interpolate(f.DocPath)
	f.op = vars.Interpolate(f.ModifierOp)

	if f.name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: mapping has no incoming field name", errors.ErrInvalidConfig),
			"Field", "Compile", "incoming name check")
	}
	if f.path == "" && !f.AppendIncomingName {
		return errors.WrapInvalid(
			fmt.Errorf("%w: empty path for incoming field %q", errors.ErrNoLeafName, f.name),
			"Field", "Compile", "leaf name check")
	}

	steps, err := ParsePath(f.path)
	if err != nil {
		return errors.Wrap(err, "Field", "Compile", fmt.Sprintf("parse path %q", f.path))
	}
	f.steps = steps
	return nil
}

// Name returns the interpolated incoming column name.
func (f *Field) Name() string { return f.name }

// Path returns the interpolated document path.
func (f *Field) Path() string { return f.path }

// Op returns the interpolated modifier operator.
func (f *Field) Op() string { return f.op }

// Steps returns the compiled navigation steps. Callers must not mutate the
// returned slice; per-row traversal keeps its own step index.
func (f *Field) Steps() []Step { return f.steps }

// Copy returns a fresh uncompiled copy of the mapping definition.
func (f *Field) Copy() *Field {
	return &Field{
		IncomingName:       f.IncomingName,
		DocPath:            f.DocPath,
		AppendIncomingName: f.AppendIncomingName,
		ValueIsJSONLiteral: f.ValueIsJSONLiteral,
		IsMatchField:       f.IsMatchField,
		ModifierOp:         f.ModifierOp,
		ModifierPolicy:     f.ModifierPolicy,
	}
}

// CompileAll copies and compiles a mapping set, leaving the input untouched.
// The returned fields are immutable and freely shareable across workers.
func CompileAll(fields []*Field, vars row.Interpolator) ([]*Field, error) {
	compiled := make([]*Field, 0, len(fields))
	for i, f := range fields {
		c := f.Copy()
		if err := c.Compile(vars); err != nil {
			return nil, errors.Wrap(err, "CompileAll", "compile", fmt.Sprintf("mapping %d", i))
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}
