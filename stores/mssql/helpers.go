package mssql

import (
	"fmt"
	"strings"

	"github.com/tsanga/musty/odm"
)

const (
	idColumn            = "id"
	docColumn           = "doc"
	collectionMetaTable = "__musty_collections"
	documentFormat      = "json"
	maxRowsPerStatement = 500
)

func quoteIdent(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func qualifiedTable(schema, table string) string {
	return quoteIdent(schema) + "." + quoteIdent(table)
}

func objectIDName(schema, table string) string {
	return quoteIdent(schema) + "." + quoteIdent(table)
}

func escapeSQLString(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

func isStringType(dataType string) bool {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "varchar", "nvarchar", "char", "nchar", "text", "ntext":
		return true
	default:
		return false
	}
}

// jsonPathLiteral renders a lax JSON path with every segment quoted.
func jsonPathLiteral(path []string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, segment := range path {
		escaped := strings.ReplaceAll(segment, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		b.WriteString(`."`)
		b.WriteString(escaped)
		b.WriteString(`"`)
	}
	return b.String()
}

// documentJSON encodes doc without its identifier, which lives in the id column.
func documentJSON(doc odm.Document) (string, error) {
	body := make(odm.Document, len(doc))
	for k, v := range doc {
		if k != odm.IDField {
			body[k] = v
		}
	}
	payload, err := odm.MarshalDocument(body)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func parseDocument(docID string, raw string) (odm.Document, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return odm.Document{odm.IDField: docID}, nil
	}
	doc, err := odm.UnmarshalDocument([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decode document %q: %w", docID, err)
	}
	doc[odm.IDField] = docID
	return doc, nil
}
