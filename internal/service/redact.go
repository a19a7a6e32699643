package service

import (
	"encoding/json"
	"strings"
)

// sensitiveKeys is the lowercase key set the Audit Log scrubs before
// persisting a request body. Matching is case-insensitive on the key name;
// nested objects and arrays are walked recursively.
var sensitiveKeys = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"api_key":       true,
	"apikey":        true,
	"api-key":       true,
	"token":         true,
	"secret":        true,
	"password":      true,
	"credential":    true,
	"credentials":   true,
	"access_token":  true,
	"refresh_token": true,
}

const redactedPlaceholder = "[REDACTED]"

// redactJSON parses body as JSON and replaces the value of any object key
// matching sensitiveKeys (case-insensitively) with redactedPlaceholder,
// recursing into nested objects and arrays. If body is not valid JSON it
// is returned unchanged — redaction is best-effort, never a hard failure.
func redactJSON(body []byte) []byte {
	if len(body) == 0 {
		return body
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return body
	}

	redacted := redactValue(v)

	out, err := json.Marshal(redacted)
	if err != nil {
		return body
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSensitiveKey(k) {
				out[k] = redactedPlaceholder
				continue
			}
			out[k] = redactValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}
