// Package configbinder binds loosely typed property maps (YAML step properties,
// environment-derived maps) onto typed structs.
package configbinder

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// BindProperties binds properties onto target, which must be a pointer to a struct.
// Fields are matched by their "yaml" tag; strings are converted to numbers, bools and
// durations ("250ms", "10s") where the target field requires it.
func BindProperties(properties map[string]interface{}, target interface{}) error {
	if len(properties) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(properties); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %s: %w", targetType.Name(), err)
	}
	return nil
}

// BindStringProperties is BindProperties for map[string]string inputs such as environment
// overrides.
func BindStringProperties(props map[string]string, target interface{}) error {
	converted := make(map[string]interface{}, len(props))
	for k, v := range props {
		converted[k] = v
	}
	return BindProperties(converted, target)
}

// Millis converts a millisecond count, the unit used by timeout settings, into a Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
