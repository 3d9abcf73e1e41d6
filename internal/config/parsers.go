// Package config provides configuration loading and parsing for volley.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseHeader parses a header given as "Name: Value".
func ParseHeader(entry string) (Pair, error) {
	name, value, ok := strings.Cut(entry, ":")
	if !ok {
		return Pair{}, fmt.Errorf("invalid header %q: expected format 'Name: Value'", entry)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Pair{}, fmt.Errorf("invalid header %q: name is empty", entry)
	}
	return Pair{Key: name, Value: strings.TrimSpace(value)}, nil
}

// ParseKeyValue parses a "key=value" pair, splitting on the first separator only.
func ParseKeyValue(entry string) (Pair, error) {
	key, value, ok := strings.Cut(entry, "=")
	if !ok {
		return Pair{}, fmt.Errorf("invalid pair %q: expected format key=value", entry)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Pair{}, fmt.Errorf("invalid pair %q: key is empty", entry)
	}
	return Pair{Key: key, Value: strings.TrimSpace(value)}, nil
}

// lookupSetting searches for a value in settings using multiple candidate keys.
// It performs case-insensitive matching by also checking lowercase versions.
func lookupSetting(settings map[string]interface{}, candidates ...string) (interface{}, bool) {
	for _, key := range candidates {
		if val, ok := settings[key]; ok {
			return val, true
		}
		lower := strings.ToLower(key)
		if val, ok := settings[lower]; ok {
			return val, true
		}
	}
	return nil, false
}

// asString converts an interface value to a string.
func asString(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// asInt converts an interface value to an int.
func asInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float32:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", value)
	}
}

// asFloat64 converts an interface value to a float64.
func asFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unsupported float type %T", value)
	}
}

// asBool converts an interface value to a bool.
func asBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return false, nil
		}
		return strconv.ParseBool(strings.TrimSpace(v))
	default:
		return false, fmt.Errorf("unsupported boolean type %T", value)
	}
}

// asDuration converts an interface value to a time.Duration.
// Numeric values are interpreted as seconds.
func asDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, nil
		}
		return time.ParseDuration(v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		iv, _ := asInt(v)
		return time.Duration(iv) * time.Second, nil
	default:
		return 0, fmt.Errorf("unsupported duration type %T", value)
	}
}

// asPairs converts a list of "k=v"/"Name: Value" strings or a map into ordered
// pairs. Map entries are sorted by key since config maps carry no order.
func asPairs(value interface{}, parse func(string) (Pair, error)) ([]Pair, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		p, err := parse(v)
		if err != nil {
			return nil, err
		}
		return []Pair{p}, nil
	case []string:
		items := make([]interface{}, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return asPairs(items, parse)
	case []interface{}:
		pairs := make([]Pair, 0, len(v))
		for i, item := range v {
			str, err := asString(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			p, err := parse(str)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			pairs = append(pairs, p)
		}
		return pairs, nil
	case map[string]interface{}, map[interface{}]interface{}:
		m, err := toStringKeyMapPreserveCase(v)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]Pair, 0, len(keys))
		for _, k := range keys {
			if strings.TrimSpace(k) == "" {
				return nil, fmt.Errorf("key cannot be empty")
			}
			str, err := asString(m[k])
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, Pair{Key: strings.TrimSpace(k), Value: str})
		}
		return pairs, nil
	default:
		return nil, fmt.Errorf("unsupported list type %T", value)
	}
}

// toStringKeyMap converts a map with various key types to map[string]interface{}.
// Keys are normalized to lowercase.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	m, err := toStringKeyMapPreserveCase(value)
	if err != nil {
		return nil, err
	}
	result := make(map[string]interface{}, len(m))
	for key, val := range m {
		result[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return result, nil
}

func toStringKeyMapPreserveCase(value interface{}) (map[string]interface{}, error) {
	result := map[string]interface{}{}
	switch v := value.(type) {
	case map[string]interface{}:
		for key, val := range v {
			result[key] = val
		}
	case map[interface{}]interface{}:
		for key, val := range v {
			str, err := asString(key)
			if err != nil {
				return nil, err
			}
			result[str] = val
		}
	default:
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	return result, nil
}
