package schema

import (
	"fmt"
	"net/url"
	"strings"
)

type Pair struct {
	Key   string
	Value string
}

// Form is a decoded url-encoded body that keeps the order in which keys were
// first received. A repeated key keeps its first position and its last value.
type Form struct {
	pairs []Pair
	index map[string]int
}

func NewForm(pairs ...Pair) Form {
	form := Form{index: map[string]int{}}
	for _, pair := range pairs {
		form.Set(pair.Key, pair.Value)
	}
	return form
}

// ParseForm decodes an application/x-www-form-urlencoded body.
func ParseForm(body []byte) (Form, error) {
	form := Form{index: map[string]int{}}
	raw := string(body)
	for raw != "" {
		var part string
		part, raw, _ = strings.Cut(raw, "&")
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return Form{}, fmt.Errorf("schema: decode form key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return Form{}, fmt.Errorf("schema: decode form value for %q: %w", key, err)
		}
		if key == "" {
			continue
		}
		form.Set(key, value)
	}
	return form, nil
}

func (f *Form) Set(key string, value string) {
	if f.index == nil {
		f.index = map[string]int{}
	}
	if idx, ok := f.index[key]; ok {
		f.pairs[idx].Value = value
		return
	}
	f.index[key] = len(f.pairs)
	f.pairs = append(f.pairs, Pair{Key: key, Value: value})
}

func (f Form) Get(key string) (string, bool) {
	idx, ok := f.index[key]
	if !ok {
		return "", false
	}
	return f.pairs[idx].Value, true
}

func (f Form) Len() int {
	return len(f.pairs)
}

// Pairs returns a copy of the received pairs in order.
func (f Form) Pairs() []Pair {
	return append([]Pair(nil), f.pairs...)
}

// Map returns the received pairs keyed by name.
func (f Form) Map() map[string]string {
	out := make(map[string]string, len(f.pairs))
	for _, pair := range f.pairs {
		out[pair.Key] = pair.Value
	}
	return out
}

// Encode renders the pairs in received order, url-encoded.
func (f Form) Encode() string {
	var b strings.Builder
	for i, pair := range f.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(pair.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(pair.Value))
	}
	return b.String()
}
