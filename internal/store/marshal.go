package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/nysm/internal/ir"
)

// marshalHandles converts a firing's bound-handle tuple to canonical JSON
// TEXT for storage. Uses RFC 8785 canonical JSON (internal/ir/canonical.go)
// for deterministic serialization: two replays of the same rule set over
// the same fact sequence produce byte-identical binding_json rows.
func marshalHandles(handles []ir.FactHandle) (string, error) {
	arr := make(ir.IRArray, len(handles))
	for i, h := range handles {
		arr[i] = ir.NewIRInt(int64(h))
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal handles: %w", err)
	}
	return string(data), nil
}

// unmarshalHandles parses a firing row's binding_json back into its handle
// tuple, in pattern order.
func unmarshalHandles(data string) ([]ir.FactHandle, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var raw []int64
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal handles: %w", err)
	}
	handles := make([]ir.FactHandle, len(raw))
	for i, v := range raw {
		handles[i] = ir.FactHandle(v)
	}
	return handles, nil
}
