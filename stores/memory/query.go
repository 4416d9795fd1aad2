package memory

import (
	"cmp"
	"slices"
	"strings"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/odm"
)

// Select filters, sorts and pages docs in process. Stores that cannot push
// a filter down to their backend use it on loaded documents.
func Select(docs []odm.Document, f filter.Filter, opts odm.FindOptions) ([]odm.Document, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	out := make([]odm.Document, 0, len(docs))
	for _, doc := range docs {
		if matchNode(f, doc, scopePlain) {
			out = append(out, doc)
		}
	}
	Sort(out, opts.SortOrDefault())
	return Page(out, opts.Skip, opts.Limit), nil
}

// Sort orders docs by the given fields. Missing values sort first, then
// numbers, strings and booleans.
func Sort(docs []odm.Document, fields []odm.SortField) {
	slices.SortStableFunc(docs, func(a, b odm.Document) int {
		for _, field := range fields {
			av, _ := a.Lookup(field.Field)
			bv, _ := b.Lookup(field.Field)
			c := compareAny(av, bv)
			if field.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

// Page applies skip and limit. A zero limit means no limit.
func Page(docs []odm.Document, skip, limit int64) []odm.Document {
	if skip >= int64(len(docs)) {
		return docs[:0]
	}
	docs = docs[skip:]
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 2
	case bool:
		return 3
	}
	if _, ok := odm.ToFloat64(v); ok {
		return 1
	}
	return 4
}

func compareAny(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 1:
		af, _ := odm.ToFloat64(a)
		bf, _ := odm.ToFloat64(b)
		return cmp.Compare(af, bf)
	case 2:
		return strings.Compare(a.(string), b.(string))
	case 3:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	default:
		return 0
	}
}
