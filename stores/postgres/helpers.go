package postgres

import (
	"fmt"
	"strings"

	"github.com/tsanga/musty/odm"
)

const (
	idColumn  = "id"
	docColumn = "doc"
)

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func qualifiedTable(schema, table string) string {
	return quoteIdent(schema) + "." + quoteIdent(table)
}

func singleQuoted(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func pathArraySQL(path []string) string {
	parts := make([]string, 0, len(path))
	for _, p := range path {
		parts = append(parts, singleQuoted(p))
	}
	return "ARRAY[" + strings.Join(parts, ", ") + "]::text[]"
}

// documentJSON encodes doc without its identifier, which lives in the id column.
func documentJSON(doc odm.Document) ([]byte, error) {
	body := make(odm.Document, len(doc))
	for k, v := range doc {
		if k != odm.IDField {
			body[k] = v
		}
	}
	return odm.MarshalDocument(body)
}

func parseDocument(docID string, raw []byte) (odm.Document, error) {
	if len(raw) == 0 {
		return odm.Document{odm.IDField: docID}, nil
	}
	doc, err := odm.UnmarshalDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("decode document %q: %w", docID, err)
	}
	doc[odm.IDField] = docID
	return doc, nil
}
