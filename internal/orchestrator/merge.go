package orchestrator

import (
	"encoding/json"
	"fmt"
)

// countItems reports how many items a payload carries: the element count
// for JSON arrays, the key count for JSON objects, zero for an empty
// payload, one for anything else.
func countItems(payload string) int {
	if payload == "" {
		return 0
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &asArray); err == nil {
		return len(asArray)
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &asObject); err == nil {
		return len(asObject)
	}

	return 1
}

// mergePartial reconstructs the local value after a partially accepted
// push: accepted items keep their applied version, rejected items revert
// to their prior version, or disappear when they had none. Arrays match
// items by their "id" field; objects match by key.
func mergePartial(prior, applied string, rejectedIDs []string) (string, error) {
	rejected := make(map[string]bool, len(rejectedIDs))
	for _, id := range rejectedIDs {
		rejected[id] = true
	}

	if merged, err := mergeArrays(prior, applied, rejected); err == nil {
		return merged, nil
	}
	if merged, err := mergeObjects(prior, applied, rejected); err == nil {
		return merged, nil
	}
	return "", fmt.Errorf("payload structure does not support item-level merge")
}

func itemID(raw json.RawMessage) string {
	var item struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return ""
	}
	return item.ID
}

func mergeArrays(prior, applied string, rejected map[string]bool) (string, error) {
	var priorItems, appliedItems []json.RawMessage
	if prior != "" {
		if err := json.Unmarshal([]byte(prior), &priorItems); err != nil {
			return "", err
		}
	}
	if err := json.Unmarshal([]byte(applied), &appliedItems); err != nil {
		return "", err
	}

	priorByID := make(map[string]json.RawMessage, len(priorItems))
	for _, item := range priorItems {
		if id := itemID(item); id != "" {
			priorByID[id] = item
		}
	}

	merged := make([]json.RawMessage, 0, len(appliedItems))
	seen := make(map[string]bool, len(appliedItems))
	for _, item := range appliedItems {
		id := itemID(item)
		seen[id] = true
		if !rejected[id] {
			merged = append(merged, item)
			continue
		}
		if previous, ok := priorByID[id]; ok {
			merged = append(merged, previous)
		}
	}

	// A rejected deletion restores the item that was removed locally
	for id := range rejected {
		if !seen[id] {
			if previous, ok := priorByID[id]; ok {
				merged = append(merged, previous)
			}
		}
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func mergeObjects(prior, applied string, rejected map[string]bool) (string, error) {
	var priorFields, appliedFields map[string]json.RawMessage
	if prior != "" {
		if err := json.Unmarshal([]byte(prior), &priorFields); err != nil {
			return "", err
		}
	}
	if err := json.Unmarshal([]byte(applied), &appliedFields); err != nil {
		return "", err
	}

	merged := make(map[string]json.RawMessage, len(appliedFields))
	for key, value := range appliedFields {
		if !rejected[key] {
			merged[key] = value
			continue
		}
		if previous, ok := priorFields[key]; ok {
			merged[key] = previous
		}
	}

	for key := range rejected {
		if _, ok := appliedFields[key]; ok {
			continue
		}
		if previous, ok := priorFields[key]; ok {
			merged[key] = previous
		}
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
