// Package serialization converts the state persisted by lockxfer to and from JSON.
package serialization

import (
	"encoding/json"

	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

const module = "serialization"

// MarshalExecutionContext serializes an ExecutionContext map into a JSON byte slice.
func MarshalExecutionContext(ctx map[string]interface{}) ([]byte, error) {
	if ctx == nil {
		logger.Debugf("ExecutionContext is nil. Returning empty JSON object.")
		return []byte("{}"), nil
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		logger.Errorf("Failed to serialize ExecutionContext: %v", err)
		return nil, exception.NewBatchError(module, "Failed to serialize ExecutionContext", err, false, false)
	}
	return data, nil
}

// UnmarshalExecutionContext deserializes a JSON byte slice into an ExecutionContext map.
// An existing map is cleared first.
func UnmarshalExecutionContext(data []byte, ctx *map[string]interface{}) error {
	if *ctx == nil {
		*ctx = make(map[string]interface{})
	} else {
		for k := range *ctx {
			delete(*ctx, k)
		}
	}

	if len(data) == 0 || string(data) == "null" || string(data) == "{}" {
		return nil
	}

	if err := json.Unmarshal(data, ctx); err != nil {
		logger.Errorf("Failed to deserialize ExecutionContext: %v", err)
		return exception.NewBatchError(module, "Failed to deserialize ExecutionContext", err, false, false)
	}
	return nil
}

// MarshalMessageIDs serializes an ordered list of message ids. A nil list becomes "[]".
func MarshalMessageIDs(ids []string) ([]byte, error) {
	if ids == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, exception.NewBatchError(module, "Failed to serialize message ids", err, false, false)
	}
	return data, nil
}

// UnmarshalMessageIDs deserializes a list produced by MarshalMessageIDs.
func UnmarshalMessageIDs(data []byte) ([]string, error) {
	ids := []string{}
	if len(data) == 0 || string(data) == "null" {
		return ids, nil
	}
	if err := json.Unmarshal(data, &ids); err != nil {
		logger.Errorf("Failed to deserialize message ids: %v", err)
		return nil, exception.NewBatchError(module, "Failed to deserialize message ids", err, false, false)
	}
	return ids, nil
}
