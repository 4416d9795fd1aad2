package odm

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Codec maps between an application type and the Document model.
type Codec[T any] interface {
	Encode(value T) (Document, error)
	Decode(doc Document) (T, error)
}

// JSONCodec maps values through their JSON encoding, so json struct tags
// decide the stored field names.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(value T) (Document, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %T: %v", ErrInvalidDocument, value, err)
	}
	doc, err := UnmarshalDocument(data)
	if err != nil {
		return nil, err
	}
	// An absent identifier encodes as null; leave the key out so stores assign one.
	if v, ok := doc[IDField]; ok && v == nil {
		delete(doc, IDField)
	}
	return doc, nil
}

func (JSONCodec[T]) Decode(doc Document) (T, error) {
	var out T
	data, err := MarshalDocument(doc)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: decode %T: %v", ErrInvalidDocument, out, err)
	}
	return out, nil
}
