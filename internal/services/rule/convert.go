package rule

import (
	"errors"
	"fmt"

	"github.com/lwx123321/smart-garden/internal/model"
)

// Operations a rule may declare. The set is closed: anything else fails
// conversion and the caller must not publish.
const (
	OpTurnOn  = "turn_on"
	OpTurnOff = "turn_off"
)

var (
	ErrEmptyDestination = errors.New("rule: empty destination device")
	ErrUnknownOperation = errors.New("rule: unknown operation")
	ErrStringComparator = errors.New("rule: comparator not valid for string operands")
)

// ConvertOperation maps a rule's declared operation to the command it
// should publish. The caller derives the target topic from the rule's
// destination device.
func ConvertOperation(r model.Rule) (model.Command, error) {
	if r.DestinationDevice == "" {
		return model.Command{}, ErrEmptyDestination
	}
	var status bool
	switch r.Operation {
	case OpTurnOn, "on":
		status = true
	case OpTurnOff, "off":
		status = false
	default:
		return model.Command{}, fmt.Errorf("%w: %q", ErrUnknownOperation, r.Operation)
	}
	return model.Command{Kind: model.CommandOpt, Status: status}, nil
}

// Evaluate applies a comparator to a message field value and a rule value.
// Both operands are coerced to float unless both are strings, in which case
// only eq/neq are valid; any other comparator on a string pair is an
// evaluation error, not a non-match.
func Evaluate(cmp model.Comparator, src, dst interface{}) (bool, error) {
	srcStr, srcIsStr := src.(string)
	dstStr, dstIsStr := dst.(string)
	if srcIsStr && dstIsStr {
		switch cmp {
		case model.CompareEqual:
			return srcStr == dstStr, nil
		case model.CompareNotEqual:
			return srcStr != dstStr, nil
		default:
			return false, fmt.Errorf("%w: %s on (%q, %q)", ErrStringComparator, cmp, srcStr, dstStr)
		}
	}

	s, err := model.ToFloat(src)
	if err != nil {
		return false, err
	}
	d, err := model.ToFloat(dst)
	if err != nil {
		return false, err
	}
	switch cmp {
	case model.CompareEqual:
		return s == d, nil
	case model.CompareNotEqual:
		return s != d, nil
	case model.CompareGreaterThan:
		return s > d, nil
	case model.CompareGreaterThanEqual:
		return s >= d, nil
	case model.CompareLessThan:
		return s < d, nil
	case model.CompareLessThanEqual:
		return s <= d, nil
	default:
		return false, fmt.Errorf("rule: unknown comparator %q", cmp)
	}
}
