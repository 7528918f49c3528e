// Package mapping defines the field-mapping schema binding incoming row
// columns to dot-notation document paths, the path compiler, and the
// top-level document classifier.
package mapping

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360/mongosink/errors"
)

// StepKind identifies the type of a compiled navigation step.
type StepKind int

const (
	// StepObject navigates into an object field by name.
	StepObject StepKind = iota
	// StepIndex navigates into an array element by index.
	StepIndex
	// StepArrayOfArray navigates a further array dimension, from an
	// adjacent bracket group such as a[0][2].
	StepArrayOfArray
)

// String returns the string representation of a StepKind
func (k StepKind) String() string {
	switch k {
	case StepObject:
		return "object"
	case StepIndex:
		return "index"
	case StepArrayOfArray:
		return "array-of-array"
	default:
		return "unknown"
	}
}

// Step is one compiled navigation step of a document path.
type Step struct {
	Kind   StepKind
	Name   string // field name for StepObject
	Index  int    // element index for StepIndex/StepArrayOfArray; -1 when Append
	Append bool   // trailing [] marker: append to the end of the array
}

// String renders the step in path syntax, used in error messages.
func (s Step) String() string {
	switch s.Kind {
	case StepObject:
		return s.Name
	case StepIndex, StepArrayOfArray:
		if s.Append {
			return "[]"
		}
		return "[" + strconv.Itoa(s.Index) + "]"
	default:
		return "?"
	}
}

// ParsePath compiles a dot-notation document path into navigation steps.
//
// Grammar: path := segment ('.' segment)*; segment := name | name'['int']' |
// '['int']'. Adjacent bracket groups express multi-dimensional arrays
// (a[0][2]). A trailing empty bracket pair ([]) marks "append to end of
// array" and is only meaningful to the $push modifier.
//
// The compiler is pure: variable interpolation happens before parsing.
func ParsePath(path string) ([]Step, error) {
	if path == "" {
		return nil, nil
	}

	var steps []Step
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: empty segment in %q", errors.ErrPathSyntax, path),
				"ParsePath", "parse", "segment check")
		}

		name := segment
		rest := ""
		if open := strings.Index(segment, "["); open >= 0 {
			name = segment[:open]
			rest = segment[open:]
		}
		if strings.ContainsAny(name, "[]") {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: unbalanced brackets in %q", errors.ErrPathSyntax, segment),
				"ParsePath", "parse", "bracket check")
		}

		if name != "" {
			steps = append(steps, Step{Kind: StepObject, Name: name})
		} else if rest == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: empty segment in %q", errors.ErrPathSyntax, path),
				"ParsePath", "parse", "segment check")
		}

		first := true
		for rest != "" {
			if rest[0] != '[' {
				return nil, errors.WrapInvalid(
					fmt.Errorf("%w: unexpected %q after index in %q", errors.ErrPathSyntax, rest, segment),
					"ParsePath", "parse", "trailing text check")
			}
			closing := strings.Index(rest, "]")
			if closing < 0 {
				return nil, errors.WrapInvalid(
					fmt.Errorf("%w: unbalanced brackets in %q", errors.ErrPathSyntax, segment),
					"ParsePath", "parse", "bracket check")
			}

			kind := StepIndex
			if !first {
				kind = StepArrayOfArray
			}
			first = false

			idxText := strings.TrimSpace(rest[1:closing])
			if idxText == "" {
				steps = append(steps, Step{Kind: kind, Index: -1, Append: true})
			} else {
				idx, err := strconv.Atoi(idxText)
				if err != nil || idx < 0 {
					return nil, errors.WrapInvalid(
						fmt.Errorf("%w: non-integer array index %q in %q", errors.ErrPathSyntax, idxText, segment),
						"ParsePath", "parse", "index check")
				}
				steps = append(steps, Step{Kind: kind, Index: idx})
			}

			rest = rest[closing+1:]
		}
	}

	return steps, nil
}

// FlattenBrackets rewrites bracketed array markers into dot notation
// (a[0].b -> a.0.b) for use as a modifier or query key. A leading dot left
// behind by a top-level index is stripped.
func FlattenBrackets(path string) string {
	if !strings.Contains(path, "[") {
		return path
	}
	flat := strings.ReplaceAll(strings.ReplaceAll(path, "[", "."), "]", "")
	return strings.TrimPrefix(flat, ".")
}
