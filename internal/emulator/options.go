package emulator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// OptionError is raised when the input record is missing a field or holds a
// value of the wrong type. It surfaces as a JSONException failure.
type OptionError struct {
	msg string
}

func (e *OptionError) Error() string { return e.msg }

// options is the decoded input record of a call
type options map[string]json.RawMessage

// parseOptions decodes the first call argument. A missing or null record
// yields empty options.
func parseOptions(args []interface{}) (options, error) {
	if len(args) == 0 || args[0] == nil {
		return options{}, nil
	}

	var raw []byte
	switch v := args[0].(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, &OptionError{msg: err.Error()}
		}
		raw = data
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return options{}, nil
	}
	if raw[0] != '{' {
		return options{}, nil
	}

	var opts options
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, &OptionError{msg: err.Error()}
	}
	return opts, nil
}

func (o options) value(key string) (json.RawMessage, bool) {
	v, ok := o[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

func (o options) getString(key string) (string, error) {
	v, ok := o.value(key)
	if !ok {
		return "", &OptionError{msg: fmt.Sprintf("No value for %s", key)}
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	// numbers and booleans are coerced the way the native JSON reader does
	if v[0] != '{' && v[0] != '[' {
		return string(v), nil
	}
	return "", &OptionError{msg: fmt.Sprintf("Value %s at %s cannot be converted to String", v, key)}
}

func (o options) getLong(key string) (int64, error) {
	v, ok := o.value(key)
	if !ok {
		return 0, &OptionError{msg: fmt.Sprintf("No value for %s", key)}
	}
	return parseLong(key, v)
}

func (o options) getInt(key string) (int, error) {
	n, err := o.getLong(key)
	return int(n), err
}

func (o options) optLong(key string, fallback int64) int64 {
	v, ok := o.value(key)
	if !ok {
		return fallback
	}
	n, err := parseLong(key, v)
	if err != nil {
		return fallback
	}
	return n
}

func (o options) optBool(key string) bool {
	v, ok := o.value(key)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		b, _ = strconv.ParseBool(s)
	}
	return b
}

func parseLong(key string, v json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		var s string
		if json.Unmarshal(v, &s) != nil {
			return 0, &OptionError{msg: fmt.Sprintf("Value %s at %s is not a number", v, key)}
		}
		n = json.Number(s)
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, &OptionError{msg: fmt.Sprintf("Value %s at %s is not a number", v, key)}
	}
	return int64(f), nil
}
