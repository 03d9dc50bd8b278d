package api

import (
	"bytes"
	"encoding/json"
)

// extractor pulls a list out of one envelope shape.
type extractor func(payload json.RawMessage) ([]json.RawMessage, bool)

// listExtractors are tried in order; the first that matches wins.
var listExtractors = []extractor{
	successData,
	dataList,
	dataResults,
	resultsList,
	bareArray,
}

// ExtractList returns the items of a list response, or an empty list when no
// known envelope shape matches.
func ExtractList(payload []byte) []json.RawMessage {
	for _, extract := range listExtractors {
		if items, ok := extract(payload); ok {
			return items
		}
	}
	return []json.RawMessage{}
}

// {"success": true, "data": [...]}
func successData(payload json.RawMessage) ([]json.RawMessage, bool) {
	obj, ok := asObject(payload)
	if !ok || !isTrue(obj["success"]) {
		return nil, false
	}
	return asArray(obj["data"])
}

// {"data": [...]}
func dataList(payload json.RawMessage) ([]json.RawMessage, bool) {
	obj, ok := asObject(payload)
	if !ok {
		return nil, false
	}
	return asArray(obj["data"])
}

// {"data": {"results": [...]}}
func dataResults(payload json.RawMessage) ([]json.RawMessage, bool) {
	obj, ok := asObject(payload)
	if !ok {
		return nil, false
	}
	data, ok := asObject(obj["data"])
	if !ok {
		return nil, false
	}
	return asArray(data["results"])
}

// {"results": [...]}
func resultsList(payload json.RawMessage) ([]json.RawMessage, bool) {
	obj, ok := asObject(payload)
	if !ok {
		return nil, false
	}
	return asArray(obj["results"])
}

// [...]
func bareArray(payload json.RawMessage) ([]json.RawMessage, bool) {
	return asArray(payload)
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func asArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func isTrue(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("true"))
}

// decodeItems decodes each item into T, skipping malformed ones.
func decodeItems[T any](items []json.RawMessage) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
