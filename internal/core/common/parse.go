package common

import (
	"encoding/json"
	"fmt"
)

// ParseJSON cleans and unmarshals a JSON object embedded in an LLM response
// into a type T. It tolerates surrounding markdown fences or prose by
// extracting the outermost {...} block before unmarshalling.
func ParseJSON[T any](response string) (T, error) {
	var zero T
	jsonStr := response

	start := -1
	end := -1
	for i, c := range jsonStr {
		if c == '{' {
			start = i
			break
		}
	}
	for i := len(jsonStr) - 1; i >= 0; i-- {
		if jsonStr[i] == '}' {
			end = i + 1
			break
		}
	}

	if start == -1 || end == -1 || start >= end {
		return zero, fmt.Errorf("no JSON object found in response")
	}
	jsonStr = jsonStr[start:end]

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}
