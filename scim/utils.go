package scim

import (
	"strconv"
	"strings"
)

func toString(intf any) (result string, ok bool) {
	if intf == nil {
		return
	}
	result, ok = intf.(string)
	return
}

func toBoolean(intf any) (result bool, ok bool) {
	if intf == nil {
		return
	}
	var supportedValue any
	switch fv := intf.(type) {
	case bool, string:
		supportedValue = fv
	case []any:
		if len(fv) > 0 {
			switch fv[0].(type) {
			case bool, string:
				supportedValue = fv[0]
			}
		}
	}
	if supportedValue != nil {
		switch fv := supportedValue.(type) {
		case bool:
			result = fv
			ok = true
		case string:
			switch strings.ToLower(fv) {
			case "1", "true", "ok":
				result = true
				ok = true
			case "0", "false":
				result = false
				ok = true
			}
		}
	}
	return
}

func toArray(intf any) (result []any) {
	if intf == nil {
		return
	}
	result, _ = intf.([]any)
	return
}

func toObject(intf any) (result map[string]any) {
	if intf == nil {
		return
	}
	result, _ = intf.(map[string]any)
	return
}

// stringify renders a field value the way the upstream serializes it:
// strings pass through, JSON numbers are formatted, everything else is
// treated as absent.
func stringify(intf any) (result string) {
	switch fv := intf.(type) {
	case string:
		result = fv
	case float64:
		result = strconv.FormatFloat(fv, 'f', -1, 64)
	case int:
		result = strconv.Itoa(fv)
	case int64:
		result = strconv.FormatInt(fv, 10)
	}
	return
}
