package odm

import "errors"

var (
	ErrNotFound        = errors.New("odm: document not found")
	ErrInvalidDocument = errors.New("odm: invalid document")
	ErrInvalidOptions  = errors.New("odm: invalid options")
	ErrSchemaMismatch  = errors.New("odm: schema mismatch")
)
