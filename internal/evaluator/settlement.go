package evaluator

import "fmt"

// Status is the final state of one evaluated fragment.
type Status string

const (
	StatusFulfilled Status = "fulfilled"
	StatusRejected  Status = "rejected"
)

// Settlement is the outcome of evaluating one text fragment: either a value
// (fulfilled) or a reason (rejected). Exactly one of Value and Reason is set.
type Settlement struct {
	Status Status `json:"status"`
	Value  *Value `json:"value,omitempty"`
	Reason *Value `json:"reason,omitempty"`
}

// Fulfilled returns a fulfilled settlement holding v.
func Fulfilled(v Value) Settlement {
	return Settlement{Status: StatusFulfilled, Value: &v}
}

// Rejected returns a rejected settlement holding reason.
func Rejected(reason Value) Settlement {
	return Settlement{Status: StatusRejected, Reason: &reason}
}

// IsFulfilled reports whether the settlement holds a value.
func (s Settlement) IsFulfilled() bool {
	return s.Status == StatusFulfilled
}

// Result returns the value or the reason, whichever is set.
func (s Settlement) Result() Value {
	if s.IsFulfilled() {
		if s.Value == nil {
			return Undefined()
		}
		return *s.Value
	}
	if s.Reason == nil {
		return Undefined()
	}
	return *s.Reason
}

func (s Settlement) String() string {
	return fmt.Sprintf("%s(%s)", s.Status, s.Result())
}

// Validate checks a settlement received from outside the process.
func (s Settlement) Validate() error {
	switch s.Status {
	case StatusFulfilled, StatusRejected:
		return nil
	default:
		return fmt.Errorf("unknown settlement status %q", s.Status)
	}
}
