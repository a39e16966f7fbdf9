package schema

import (
	"fmt"
	"slices"
	"strings"
)

type ConditionKind string

const (
	ConditionNonEmpty  ConditionKind = "non_empty"
	ConditionASCIIOnly ConditionKind = "ascii_only"
	ConditionMaxLength ConditionKind = "max_length"
	ConditionOneOf     ConditionKind = "one_of"
)

// ASCIIRange is the closed set of bytes accepted by ASCIIOnly.
const ASCIIRange = "1234567890abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Condition is a closed set: NonEmpty, ASCIIOnly, MaxLength and OneOf.
type Condition interface {
	Kind() ConditionKind
	sealedCondition()
}

type NonEmpty struct{}

type ASCIIOnly struct{}

type Operator string

const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpGreaterEqual Operator = ">="
	OpGreater      Operator = ">"
)

// MaxLength compares the byte length of the value against Bound.
type MaxLength struct {
	Op    Operator
	Bound int
}

type OneOf struct {
	Values []string
}

func (NonEmpty) Kind() ConditionKind  { return ConditionNonEmpty }
func (ASCIIOnly) Kind() ConditionKind { return ConditionASCIIOnly }
func (MaxLength) Kind() ConditionKind { return ConditionMaxLength }
func (OneOf) Kind() ConditionKind     { return ConditionOneOf }

func (NonEmpty) sealedCondition()  {}
func (ASCIIOnly) sealedCondition() {}
func (MaxLength) sealedCondition() {}
func (OneOf) sealedCondition()     {}

// Check reports whether value satisfies condition.
func Check(condition Condition, value string) (bool, error) {
	switch c := condition.(type) {
	case NonEmpty:
		return value != "" && value != "0", nil
	case ASCIIOnly:
		return isASCIIRange(value), nil
	case MaxLength:
		return compare(len(value), c.Bound, c.Op)
	case OneOf:
		return slices.Contains(c.Values, value), nil
	case nil:
		return false, fmt.Errorf("schema: condition is nil")
	default:
		return false, fmt.Errorf("schema: unsupported condition %T", condition)
	}
}

func isASCIIRange(value string) bool {
	for i := 0; i < len(value); i++ {
		if strings.IndexByte(ASCIIRange, value[i]) < 0 {
			return false
		}
	}
	return true
}

func compare(left int, right int, op Operator) (bool, error) {
	switch op {
	case OpLess:
		return left < right, nil
	case OpLessEqual:
		return left <= right, nil
	case OpEqual:
		return left == right, nil
	case OpNotEqual:
		return left != right, nil
	case OpGreaterEqual:
		return left >= right, nil
	case OpGreater:
		return left > right, nil
	default:
		return false, fmt.Errorf("schema: unsupported operator %q", op)
	}
}
