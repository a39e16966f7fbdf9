package schema

import (
	"html"
	"strconv"
	"strings"
)

type Violation struct {
	Field   string
	Rule    string
	Message string
}

type Violations []Violation

func (v Violations) Empty() bool {
	return len(v) == 0
}

// String joins the messages, one per line. An empty set renders as "".
func (v Violations) String() string {
	if len(v) == 0 {
		return ""
	}
	messages := make([]string, 0, len(v))
	for _, violation := range v {
		messages = append(messages, violation.Message)
	}
	return strings.Join(messages, "\n")
}

type Result struct {
	Values Values
	Errors Violations
}

// Sanitizer extracts and normalizes notification fields against an immutable
// field table.
type Sanitizer struct {
	fields   []Field
	messages Messages
}

func NewSanitizer(fields []Field, messages Messages) *Sanitizer {
	if len(messages) == 0 {
		messages = DefaultMessages()
	}
	return &Sanitizer{
		fields:   append([]Field(nil), fields...),
		messages: messages,
	}
}

func (s *Sanitizer) Fields() []Field {
	if s == nil {
		return nil
	}
	return append([]Field(nil), s.fields...)
}

// Sanitize never fails on bad input: violations are returned in Result.Errors.
// Unknown form keys are ignored.
func (s *Sanitizer) Sanitize(form Form) Result {
	result := Result{Values: Values{}}
	if s == nil {
		return result
	}
	for _, field := range s.fields {
		raw, present := form.Get(field.Name)
		value := extract(field.Default, raw, present)

		measured := value.String()
		for _, condition := range field.Conditions {
			ok, err := Check(condition, measured)
			if ok && err == nil {
				continue
			}
			rule := "unknown"
			if condition != nil {
				rule = string(condition.Kind())
			}
			result.Errors = append(result.Errors, Violation{
				Field:   field.Name,
				Rule:    rule,
				Message: s.messages.format(rule, field.Name),
			})
		}

		for _, normalizer := range field.Normalizers {
			if next, err := Apply(normalizer, value); err == nil {
				value = next
			}
		}
		result.Values[field.Name] = value
	}
	return result
}

// Sanitize runs fields over form with a one-off Sanitizer.
func Sanitize(form Form, fields []Field, messages Messages) Result {
	return NewSanitizer(fields, messages).Sanitize(form)
}

// VerifyReceiver appends an account_id violation to result unless the
// declared receiver matches identity.
func (s *Sanitizer) VerifyReceiver(result *Result, identity string) bool {
	if result == nil {
		return false
	}
	if CheckReceiver(result.Values, identity) {
		return true
	}
	messages := DefaultMessages()
	if s != nil {
		messages = s.messages
	}
	result.Errors = append(result.Errors, Violation{
		Field:   "receiver_id",
		Rule:    MessageKeyAccountID,
		Message: messages.format(MessageKeyAccountID, ""),
	})
	return false
}

// CheckReceiver reports whether receiver_id equals identity or receiver_email
// matches it case-insensitively. An empty identity never matches.
func CheckReceiver(values Values, identity string) bool {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return false
	}
	if values.Text("receiver_id") == identity {
		return true
	}
	return strings.EqualFold(values.Text("receiver_email"), identity)
}

func extract(def Default, raw string, present bool) Value {
	switch def.Kind {
	case DefaultBool:
		if !present {
			return BoolValue(def.Flag)
		}
		return BoolValue(truthy(raw))
	case DefaultFloat:
		if !present {
			return FloatValue(def.Number)
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return FloatValue(0)
		}
		return FloatValue(parsed)
	case DefaultText:
		if !present {
			return StringValue(def.Text)
		}
		text := strings.ToValidUTF8(strings.TrimSpace(raw), "")
		if def.Decode {
			text = html.UnescapeString(text)
		}
		return StringValue(text)
	default:
		if !present {
			return StringValue(def.Text)
		}
		return StringValue(asciiOnly(strings.TrimSpace(raw)))
	}
}

// asciiOnly replaces every byte above 0x7F with '?'.
func asciiOnly(value string) string {
	for i := 0; i < len(value); i++ {
		if value[i] < 0x80 {
			continue
		}
		out := []byte(value)
		for j := i; j < len(out); j++ {
			if out[j] >= 0x80 {
				out[j] = '?'
			}
		}
		return string(out)
	}
	return value
}
