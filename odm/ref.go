package odm

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/id"
)

// Ref points at a record of M by identifier and may carry the record once
// it has been loaded. Encoded forms hold the identifier only, so a decoded
// Ref is never loaded.
type Ref[M Model] struct {
	id     id.ID
	model  M
	loaded bool
}

var (
	_ filter.Referencer     = Ref[Model]{}
	_ msgpack.CustomEncoder = Ref[Model]{}
	_ msgpack.CustomDecoder = (*Ref[Model])(nil)
)

// RefTo references the record with the given identifier.
func RefTo[M Model](recordID id.ID) Ref[M] {
	return Ref[M]{id: recordID}
}

// RefOf references a loaded record. model must not be nil.
func RefOf[M Model](model M) Ref[M] {
	return Ref[M]{id: model.GetID(), model: model, loaded: true}
}

// ID returns the referenced identifier. For a loaded record it is read from
// the record, so identifiers assigned by a later Save are seen.
func (r Ref[M]) ID() id.ID {
	if r.loaded {
		return r.model.GetID()
	}
	return r.id
}

func (r Ref[M]) RefID() id.ID {
	return r.ID()
}

func (r Ref[M]) IsNone() bool {
	return r.ID().IsNone()
}

// Loaded returns the carried record, if any.
func (r Ref[M]) Loaded() (M, bool) {
	return r.model, r.loaded
}

// Identifier returns the reference as a filter operand.
func (r Ref[M]) Identifier() filter.Identifier {
	return filter.IdentifierOf(r.ID())
}

// Get returns the carried record, or fetches it through repo.
func (r Ref[M]) Get(ctx context.Context, repo *Repository[M]) (M, error) {
	if r.loaded {
		return r.model, nil
	}
	return repo.Get(ctx, r.id)
}

// Load is Get that keeps the fetched record in r.
func (r *Ref[M]) Load(ctx context.Context, repo *Repository[M]) (M, error) {
	model, err := r.Get(ctx, repo)
	if err != nil {
		return model, err
	}
	r.model, r.loaded = model, true
	return model, nil
}

func (r Ref[M]) String() string {
	return r.ID().String()
}

func (r Ref[M]) MarshalJSON() ([]byte, error) {
	return r.ID().MarshalJSON()
}

func (r *Ref[M]) UnmarshalJSON(data []byte) error {
	var recordID id.ID
	if err := recordID.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("ref: %w", err)
	}
	*r = RefTo[M](recordID)
	return nil
}

func (r Ref[M]) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return r.ID().MarshalBSONValue()
}

func (r *Ref[M]) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var recordID id.ID
	if err := recordID.UnmarshalBSONValue(t, data); err != nil {
		return fmt.Errorf("ref: %w", err)
	}
	*r = RefTo[M](recordID)
	return nil
}

func (r Ref[M]) EncodeMsgpack(enc *msgpack.Encoder) error {
	return r.ID().EncodeMsgpack(enc)
}

func (r *Ref[M]) DecodeMsgpack(dec *msgpack.Decoder) error {
	var recordID id.ID
	if err := recordID.DecodeMsgpack(dec); err != nil {
		return fmt.Errorf("ref: %w", err)
	}
	*r = RefTo[M](recordID)
	return nil
}
