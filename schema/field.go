package schema

import (
	"strconv"
	"strings"
)

type DefaultKind int

const (
	DefaultString DefaultKind = iota
	DefaultText
	DefaultBool
	DefaultFloat
)

// Default is the typed fallback used when a field is absent. It also decides
// how a present raw value is coerced.
type Default struct {
	Kind   DefaultKind
	Text   string
	Flag   bool
	Number float64
	// Decode un-escapes HTML entities on text values.
	Decode bool
}

func StringDefault(value string) Default {
	return Default{Kind: DefaultString, Text: value}
}

// TextDefault accepts multibyte input; decode un-escapes HTML entities.
func TextDefault(value string, decode bool) Default {
	return Default{Kind: DefaultText, Text: value, Decode: decode}
}

func BoolDefault(value bool) Default {
	return Default{Kind: DefaultBool, Flag: value}
}

func FloatDefault(value float64) Default {
	return Default{Kind: DefaultFloat, Number: value}
}

type Field struct {
	Name        string
	Default     Default
	Conditions  []Condition
	Normalizers []Normalizer
}

type ValueKind int

const (
	KindString ValueKind = iota
	KindBool
	KindFloat
	KindTimestamp
)

type Value struct {
	Kind   ValueKind
	Text   string
	Flag   bool
	Number float64
	Unix   int64
}

func StringValue(text string) Value {
	return Value{Kind: KindString, Text: text}
}

func BoolValue(flag bool) Value {
	return Value{Kind: KindBool, Flag: flag}
}

func FloatValue(number float64) Value {
	return Value{Kind: KindFloat, Number: number}
}

func TimestampValue(unix int64) Value {
	return Value{Kind: KindTimestamp, Unix: unix}
}

// String renders the value the way conditions measure it.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		if v.Flag {
			return "1"
		}
		return ""
	case KindFloat:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindTimestamp:
		return strconv.FormatInt(v.Unix, 10)
	default:
		return v.Text
	}
}

// Values is the sanitized, typed view of a notification.
type Values map[string]Value

func (v Values) Text(name string) string {
	value, ok := v[name]
	if !ok {
		return ""
	}
	return value.String()
}

func (v Values) Bool(name string) bool {
	value, ok := v[name]
	if !ok {
		return false
	}
	switch value.Kind {
	case KindBool:
		return value.Flag
	case KindFloat:
		return value.Number != 0
	case KindTimestamp:
		return value.Unix != 0
	default:
		return truthy(value.Text)
	}
}

func (v Values) Float(name string) float64 {
	value, ok := v[name]
	if !ok {
		return 0
	}
	switch value.Kind {
	case KindFloat:
		return value.Number
	case KindTimestamp:
		return float64(value.Unix)
	case KindBool:
		if value.Flag {
			return 1
		}
		return 0
	default:
		return parseFloat(value.Text)
	}
}

func (v Values) Unix(name string) int64 {
	value, ok := v[name]
	if !ok {
		return 0
	}
	switch value.Kind {
	case KindTimestamp:
		return value.Unix
	case KindFloat:
		return int64(value.Number)
	default:
		parsed, err := strconv.ParseInt(strings.TrimSpace(value.Text), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	}
}

func truthy(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw != "" && raw != "0"
}

func parseFloat(raw string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return parsed
}
