package filter

import "fmt"

// CmpOp is the comparison applied by a leaf condition.
type CmpOp string

const (
	Eq CmpOp = "eq"
	Ne CmpOp = "ne"
	Gt CmpOp = "gt"
	Lt CmpOp = "lt"
	Ge CmpOp = "ge"
	Le CmpOp = "le"
)

// Ordering reports whether the operator needs an orderable operand.
func (o CmpOp) Ordering() bool {
	switch o {
	case Gt, Lt, Ge, Le:
		return true
	default:
		return false
	}
}

func (o CmpOp) Validate() error {
	switch o {
	case Eq, Ne, Gt, Lt, Ge, Le:
		return nil
	default:
		return fmt.Errorf("%w: unsupported comparison operator %q", ErrInvalidFilterOperation, o)
	}
}

// Symbol returns the operator in infix notation.
func (o CmpOp) Symbol() string {
	switch o {
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Gt:
		return ">"
	case Lt:
		return "<"
	case Ge:
		return ">="
	case Le:
		return "<="
	default:
		return string(o)
	}
}

// LogicOp names a boolean group.
type LogicOp string

const (
	// LogicAll requires every member of the group to hold.
	LogicAll LogicOp = "all"
	// LogicAny requires at least one member of the group to hold.
	LogicAny LogicOp = "any"
)

// LogicOps lists the logical operators in lowering order.
var LogicOps = []LogicOp{LogicAll, LogicAny}

func (o LogicOp) Validate() error {
	switch o {
	case LogicAll, LogicAny:
		return nil
	default:
		return fmt.Errorf("%w: unsupported logical operator %q", ErrInvalidFilterOperation, o)
	}
}
