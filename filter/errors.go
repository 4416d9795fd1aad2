package filter

import "errors"

var (
	ErrInvalidFilterOperation = errors.New("filter: invalid filter operation")
	ErrMalformedEncoding      = errors.New("filter: malformed encoding")
	ErrUnknownField           = errors.New("filter: unknown field")
)
