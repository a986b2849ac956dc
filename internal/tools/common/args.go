package common

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// StringArg returns the trimmed string argument name, or "".
func StringArg(args map[string]interface{}, name string) string {
	if v, ok := args[name].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Int64Arg returns an integer argument. JSON numbers arrive as float64;
// numeric strings are accepted too.
func Int64Arg(args map[string]interface{}, name string) (int64, bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, true, fmt.Errorf("%s must be an integer", name)
		}
		return int64(v), true, nil
	case int:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case string:
		var n int64
		if _, err := fmt.Sscan(strings.TrimSpace(v), &n); err != nil {
			return 0, true, fmt.Errorf("%s must be an integer", name)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("%s must be an integer", name)
	}
}

// TimeArg parses an RFC 3339 argument. A missing argument returns the zero
// time.
func TimeArg(args map[string]interface{}, name string) (time.Time, error) {
	s := StringArg(args, name)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp (e.g. 2026-03-02T15:00:00Z)", name)
	}
	return t, nil
}

// StringListArg accepts either a JSON array of strings or a comma-separated
// string.
func StringListArg(args map[string]interface{}, name string) []string {
	var out []string
	switch v := args[name].(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}
