package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// isOfType reports whether value already satisfies the target type without
// conversion. YAML and JSON decoding shape the inputs: ints arrive as
// int/int64, floats as float64, tables as map[string]any, lists as []any.
func isOfType(value any, target ValueType) bool {
	switch target {
	case TypeAny:
		return true
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeInt:
		switch value.(type) {
		case int, int64:
			return true
		}
		return false
	case TypeFloat:
		_, ok := value.(float64)
		return ok
	case TypeList:
		_, ok := value.([]any)
		return ok
	case TypeMap:
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}

// Coerce converts value to the target type on a best-effort basis,
// mirroring the enforcement rules the resolver applies per source.
func Coerce(value any, target ValueType) (any, error) {
	if isOfType(value, target) {
		return value, nil
	}
	switch target {
	case TypeBool:
		return coerceBool(value)
	case TypeList:
		return coerceList(value)
	case TypeString:
		return coerceString(value)
	case TypeInt:
		return coerceInt(value)
	case TypeFloat:
		return coerceFloat(value)
	}
	return nil, &CoercionError{Value: value, Target: target}
}

// coerceBool recognizes true/1/yes/on and false/0/no/off case-insensitively,
// plus any nonzero number as true.
func coerceBool(value any) (any, error) {
	switch v := value.(type) {
	case string:
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	}
	return nil, &CoercionError{Value: value, Target: TypeBool}
}

// coerceList parses a string as a JSON array literal.
func coerceList(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, &CoercionError{Value: value, Target: TypeList}
	}
	var list []any
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, &CoercionError{Value: value, Target: TypeList}
	}
	return list, nil
}

func coerceString(value any) (any, error) {
	switch v := value.(type) {
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", v), nil
	}
	return nil, &CoercionError{Value: value, Target: TypeString}
}

func coerceInt(value any) (any, error) {
	switch v := value.(type) {
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return int(n), nil
		}
	case float64:
		return int(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return nil, &CoercionError{Value: value, Target: TypeInt}
}

func coerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, nil
		}
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, &CoercionError{Value: value, Target: TypeFloat}
}
