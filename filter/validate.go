package filter

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Validate walks the whole tree and reports every malformed node. The
// returned error wraps ErrInvalidFilterOperation once per problem.
func (f Filter) Validate() error {
	var result *multierror.Error
	f.validate("", &result)
	return result.ErrorOrNil()
}

func (f Filter) validate(path string, result **multierror.Error) {
	for _, c := range f.Conditions {
		if err := c.validate(path); err != nil {
			*result = multierror.Append(*result, err)
		}
		if nested, ok := c.Value.(Nested); ok {
			nested.Filter.validate(joinPath(path, c.Key)+"[]", result)
		}
	}
	for _, op := range slices.Sorted(maps.Keys(f.Groups)) {
		g := f.Groups[op]
		if err := op.Validate(); err != nil {
			*result = multierror.Append(*result, fmt.Errorf("%w at %s", err, displayPath(path)))
		}
		g.validate(joinPath(path, "$"+string(op)), result)
	}
	for name, child := range f.OrderedChildren() {
		if strings.TrimSpace(name) == "" {
			*result = multierror.Append(*result, fmt.Errorf("%w: empty child name at %s", ErrInvalidFilterOperation, displayPath(path)))
		}
		child.validate(joinPath(path, name), result)
	}
}

// Validate checks a single condition in isolation.
func (c Condition) Validate() error {
	return c.validate("")
}

func (c Condition) validate(path string) error {
	at := displayPath(path)
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("%w: empty field key at %s", ErrInvalidFilterOperation, at)
	}
	if err := c.Op.Validate(); err != nil {
		return fmt.Errorf("%w (field %q)", err, c.Key)
	}
	if c.Value == nil {
		return fmt.Errorf("%w: field %q has no value", ErrInvalidFilterOperation, c.Key)
	}
	if c.Op.Ordering() && !Orderable(c.Value) {
		return fmt.Errorf("%w: %s on non-orderable %s value for field %q", ErrInvalidFilterOperation, c.Op, c.Value.Kind(), c.Key)
	}
	if v, ok := c.Value.(List); ok {
		for i, item := range v {
			switch item.(type) {
			case nil:
				return fmt.Errorf("%w: list entry %d of field %q is nil", ErrInvalidFilterOperation, i, c.Key)
			case List, Nested:
				return fmt.Errorf("%w: list entry %d of field %q is not a scalar", ErrInvalidFilterOperation, i, c.Key)
			}
		}
	}
	return nil
}

func joinPath(path, segment string) string {
	if path == "" {
		return segment
	}
	return path + "." + segment
}

func displayPath(path string) string {
	if path == "" {
		return "root"
	}
	return path
}
