package component

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/c360/mongosink/errors"
)

// MaxJSONSize bounds raw component configuration payloads.
const MaxJSONSize = 1 << 20

// Validatable allows config structs to self-validate after unmarshaling
type Validatable interface {
	Validate() error
}

// SafeUnmarshal unmarshals raw component configuration into target with
// basic hardening: a size bound, a pointer-target check, and struct
// validation when the target implements Validatable. An empty config is
// valid; the target keeps its defaults.
func SafeUnmarshal(rawConfig json.RawMessage, target any) error {
	if len(rawConfig) > MaxJSONSize {
		return errors.WrapInvalid(
			fmt.Errorf("config size %d exceeds maximum %d", len(rawConfig), MaxJSONSize),
			"ConfigValidator", "SafeUnmarshal", "size check")
	}

	if len(rawConfig) == 0 {
		return nil
	}

	targetType := reflect.TypeOf(target)
	if targetType == nil || targetType.Kind() != reflect.Ptr {
		return errors.WrapInvalid(
			fmt.Errorf("target must be a pointer, got %T", target),
			"ConfigValidator", "SafeUnmarshal", "target type check")
	}

	decoder := json.NewDecoder(bytes.NewReader(rawConfig))
	if err := decoder.Decode(target); err != nil {
		return errors.WrapInvalid(err, "ConfigValidator", "SafeUnmarshal", "JSON unmarshaling")
	}

	if validatable, ok := target.(Validatable); ok {
		if err := validatable.Validate(); err != nil {
			return errors.Wrap(err, "ConfigValidator", "SafeUnmarshal", "struct validation")
		}
	}

	return nil
}
