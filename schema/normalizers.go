package schema

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type NormalizerKind string

const (
	NormalizerTruncate       NormalizerKind = "truncate"
	NormalizerLowercase      NormalizerKind = "lowercase"
	NormalizerParseTimestamp NormalizerKind = "parse_timestamp"
)

// Normalizer is a closed set: Truncate, Lowercase and ParseTimestamp.
type Normalizer interface {
	Kind() NormalizerKind
	sealedNormalizer()
}

// Truncate bounds the value to Length bytes without splitting a rune.
type Truncate struct {
	Length int
}

type Lowercase struct {
	Force bool
}

// ParseTimestamp turns a provider date string into unix seconds. Values that
// cannot be parsed become 0.
type ParseTimestamp struct {
	Force bool
}

func (Truncate) Kind() NormalizerKind       { return NormalizerTruncate }
func (Lowercase) Kind() NormalizerKind      { return NormalizerLowercase }
func (ParseTimestamp) Kind() NormalizerKind { return NormalizerParseTimestamp }

func (Truncate) sealedNormalizer()       {}
func (Lowercase) sealedNormalizer()      {}
func (ParseTimestamp) sealedNormalizer() {}

// Apply runs normalizer over value.
func Apply(normalizer Normalizer, value Value) (Value, error) {
	switch n := normalizer.(type) {
	case Truncate:
		if value.Kind != KindString {
			return value, nil
		}
		value.Text = truncateBytes(value.Text, n.Length)
		return value, nil
	case Lowercase:
		if !n.Force || value.Kind != KindString {
			return value, nil
		}
		value.Text = strings.ToLower(value.Text)
		return value, nil
	case ParseTimestamp:
		if !n.Force {
			return value, nil
		}
		if value.Kind == KindTimestamp {
			return value, nil
		}
		parsed, ok := ParseProviderTime(value.String())
		if !ok {
			return TimestampValue(0), nil
		}
		return TimestampValue(parsed.Unix()), nil
	case nil:
		return value, fmt.Errorf("schema: normalizer is nil")
	default:
		return value, fmt.Errorf("schema: unsupported normalizer %T", normalizer)
	}
}

func truncateBytes(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

var providerTimeLayouts = []string{
	"15:04:05 Jan 02, 2006",
	"15:04:05 Jan 2, 2006",
	"15:04:05 Jan. 02, 2006",
	"15:04:05 Jan. 2, 2006",
}

var providerZones = map[string]int{
	"PST": -8 * 3600,
	"PDT": -7 * 3600,
	"UTC": 0,
	"GMT": 0,
	"Z":   0,
}

// ParseProviderTime parses dates in the provider format
// "HH:MM:SS Mon DD, YYYY TZ", for example "08:52:11 Jan 02, 2024 PST".
// RFC 3339 input is accepted as well.
func ParseProviderTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC(), true
	}

	body := raw
	offset := 0
	if idx := strings.LastIndexByte(raw, ' '); idx > 0 {
		zone := strings.ToUpper(raw[idx+1:])
		if seconds, ok := providerZones[zone]; ok {
			body = strings.TrimSpace(raw[:idx])
			offset = seconds
		}
	}
	location := time.FixedZone("", offset)
	for _, layout := range providerTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, body, location); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
