// Package id provides the optional record identifier shared by models,
// filters and stores.
package id

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID is an identifier that may be absent. The zero value is absent.
type ID struct {
	value string
	valid bool
}

// New returns a freshly generated identifier.
func New() ID {
	return ID{value: uuid.NewString(), valid: true}
}

// NewObjectID returns a freshly generated identifier in MongoDB ObjectID hex form.
func NewObjectID() ID {
	return ID{value: primitive.NewObjectID().Hex(), valid: true}
}

// From wraps an existing identifier string. An empty string yields an absent ID.
func From(s string) ID {
	s = strings.TrimSpace(s)
	if s == "" {
		return ID{}
	}
	return ID{value: s, valid: true}
}

// None returns an absent identifier.
func None() ID {
	return ID{}
}

// Get returns the identifier string and whether it is present.
func (i ID) Get() (string, bool) {
	return i.value, i.valid
}

func (i ID) IsNone() bool {
	return !i.valid
}

// String returns the identifier or the empty string when absent.
func (i ID) String() string {
	return i.value
}

// Ptr returns a pointer to a copy of the identifier string, or nil when absent.
func (i ID) Ptr() *string {
	if !i.valid {
		return nil
	}
	v := i.value
	return &v
}

// IsObjectID reports whether the identifier is a 24 character hex ObjectID.
func (i ID) IsObjectID() bool {
	if !i.valid {
		return false
	}
	return primitive.IsValidObjectID(i.value)
}

func (i ID) MarshalJSON() ([]byte, error) {
	if !i.valid {
		return []byte("null"), nil
	}
	return json.Marshal(i.value)
}

func (i *ID) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("id: decode JSON: %w", err)
	}
	if s == nil {
		*i = ID{}
		return nil
	}
	*i = From(*s)
	return nil
}

// MarshalBSONValue stores ObjectID-shaped identifiers as native ObjectIDs.
func (i ID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if !i.valid {
		return bson.TypeNull, nil, nil
	}
	if oid, err := primitive.ObjectIDFromHex(i.value); err == nil {
		return bson.MarshalValue(oid)
	}
	return bson.MarshalValue(i.value)
}

func (i *ID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeNull, bson.TypeUndefined:
		*i = ID{}
		return nil
	case bson.TypeObjectID:
		oid, ok := raw.ObjectIDOK()
		if !ok {
			return fmt.Errorf("id: malformed ObjectID")
		}
		*i = From(oid.Hex())
		return nil
	case bson.TypeString:
		s, ok := raw.StringValueOK()
		if !ok {
			return fmt.Errorf("id: malformed string")
		}
		*i = From(s)
		return nil
	default:
		return fmt.Errorf("id: unsupported BSON type %s", t)
	}
}

var (
	_ msgpack.CustomEncoder = ID{}
	_ msgpack.CustomDecoder = (*ID)(nil)
)

func (i ID) EncodeMsgpack(enc *msgpack.Encoder) error {
	if !i.valid {
		return enc.EncodeNil()
	}
	return enc.EncodeString(i.value)
}

func (i *ID) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	if err != nil {
		return err
	}
	*i = From(s)
	return nil
}
