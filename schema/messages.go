package schema

import "fmt"

// MessageKeyAccountID identifies the receiver identity violation.
const MessageKeyAccountID = "account_id"

// Messages maps a violation key (a ConditionKind or MessageKeyAccountID) to a
// format string. Condition formats receive the field name as their only verb.
type Messages map[string]string

func DefaultMessages() Messages {
	return Messages{
		string(ConditionNonEmpty):  "Invalid transaction: the field %q is empty.",
		string(ConditionASCIIOnly): "Invalid transaction: the field %q contains characters outside the allowed range.",
		string(ConditionMaxLength): "Invalid transaction: the field %q has an invalid length.",
		string(ConditionOneOf):     "Invalid transaction: the field %q has an unexpected value.",
		MessageKeyAccountID:        "Invalid transaction: the receiver does not match the merchant account.",
	}
}

func (m Messages) format(key string, field string) string {
	pattern, ok := m[key]
	if !ok || pattern == "" {
		pattern, ok = DefaultMessages()[key]
	}
	if !ok {
		return fmt.Sprintf("Invalid transaction: the field %q failed %s.", field, key)
	}
	if field == "" {
		return pattern
	}
	return fmt.Sprintf(pattern, field)
}
