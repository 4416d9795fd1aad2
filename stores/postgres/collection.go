package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/odm"
)

const maxRowsPerStatement = 500

// IndexOptions configures EnsureIndex.
type IndexOptions struct {
	Name string
	// UsePathOps selects the jsonb_path_ops operator class, which is smaller
	// and serves containment queries only.
	UsePathOps bool
}

// PostgresCollection is a PostgreSQL-backed document collection.
type PostgresCollection struct {
	store *PostgresStore
	name  string
}

type queryPlan struct {
	query string
	args  []any
}

func (c *PostgresCollection) Name() string {
	return c.name
}

func (c *PostgresCollection) Save(ctx context.Context, doc odm.Document) (string, error) {
	ids, err := c.SaveMany(ctx, []odm.Document{doc})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// SaveMany upserts docs in batches of at most maxRowsPerStatement rows.
func (c *PostgresCollection) SaveMany(ctx context.Context, docs []odm.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(docs))
	for start := 0; start < len(docs); start += maxRowsPerStatement {
		end := start + maxRowsPerStatement
		if end > len(docs) {
			end = len(docs)
		}

		query, args, batchIDs, err := c.buildWriteBatch(docs[start:end])
		if err != nil {
			return nil, err
		}
		if _, err := c.store.pool.Exec(ctx, query, args...); err != nil {
			return nil, err
		}
		ids = append(ids, batchIDs...)
	}
	return ids, nil
}

func (c *PostgresCollection) Get(ctx context.Context, docID string) (odm.Document, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s = $1`,
		quoteIdent(idColumn),
		quoteIdent(docColumn),
		c.tableName(),
		quoteIdent(idColumn),
	)

	var gotID string
	var raw []byte
	if err := c.store.pool.QueryRow(ctx, query, docID).Scan(&gotID, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, odm.ErrNotFound
		}
		return nil, err
	}
	return parseDocument(gotID, raw)
}

func (c *PostgresCollection) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ANY($1)`, c.tableName(), quoteIdent(idColumn))
	cmd, err := c.store.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (c *PostgresCollection) Find(ctx context.Context, f filter.Filter, opts odm.FindOptions) ([]odm.Document, error) {
	plan, err := c.buildFindPlan(f, opts)
	if err != nil {
		return nil, err
	}
	c.logQuery("find", plan)

	rows, err := c.store.pool.Query(ctx, plan.query, plan.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]odm.Document, 0)
	for rows.Next() {
		var docID string
		var raw []byte
		if err := rows.Scan(&docID, &raw); err != nil {
			return nil, err
		}
		doc, err := parseDocument(docID, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PostgresCollection) FindOne(ctx context.Context, f filter.Filter) (odm.Document, error) {
	docs, err := c.Find(ctx, f, odm.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, odm.ErrNotFound
	}
	return docs[0], nil
}

func (c *PostgresCollection) Count(ctx context.Context, f filter.Filter) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.tableName())
	whereSQL, args, _, err := CompileFilterSQL(f, c.filterConfig(), 1)
	if err != nil {
		return 0, err
	}
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}
	c.logQuery("count", queryPlan{query: query, args: args})

	var count int64
	if err := c.store.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// EnsureIndex creates a GIN index over the doc column.
func (c *PostgresCollection) EnsureIndex(ctx context.Context, opts IndexOptions) error {
	indexName := opts.Name
	if indexName == "" {
		indexName = fmt.Sprintf("idx_%s_doc_gin", c.name)
	}

	docExpr := quoteIdent(docColumn)
	if opts.UsePathOps {
		docExpr += " jsonb_path_ops"
	}

	query := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s USING gin (%s)",
		quoteIdent(indexName),
		c.tableName(),
		docExpr,
	)
	if _, err := c.store.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure document index: %w", err)
	}
	return nil
}

func (c *PostgresCollection) buildFindPlan(f filter.Filter, opts odm.FindOptions) (queryPlan, error) {
	if err := opts.Validate(); err != nil {
		return queryPlan{}, err
	}
	whereSQL, args, nextArg, err := CompileFilterSQL(f, c.filterConfig(), 1)
	if err != nil {
		return queryPlan{}, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(quoteIdent(idColumn))
	b.WriteString(", ")
	b.WriteString(quoteIdent(docColumn))
	b.WriteString(" FROM ")
	b.WriteString(c.tableName())
	if whereSQL != "" {
		b.WriteString(" WHERE ")
		b.WriteString(whereSQL)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(orderBySQL(opts.SortOrDefault()))
	if opts.Limit > 0 {
		b.WriteString(fmt.Sprintf(" LIMIT $%d", nextArg))
		args = append(args, opts.Limit)
		nextArg++
	}
	if opts.Skip > 0 {
		b.WriteString(fmt.Sprintf(" OFFSET $%d", nextArg))
		args = append(args, opts.Skip)
	}

	return queryPlan{query: b.String(), args: args}, nil
}

// orderBySQL sorts missing and null values first, then numbers, strings and
// booleans.
func orderBySQL(fields []odm.SortField) string {
	parts := make([]string, 0, len(fields)*4)
	for _, f := range fields {
		dir := " ASC"
		if f.Desc {
			dir = " DESC"
		}
		if f.Field == odm.IDField {
			parts = append(parts, quoteIdent(idColumn)+` COLLATE "C"`+dir)
			continue
		}
		expr := fmt.Sprintf("(%s #> %s)", quoteIdent(docColumn), pathArraySQL(strings.Split(f.Field, ".")))
		parts = append(parts,
			fmt.Sprintf("(CASE COALESCE(jsonb_typeof(%s), 'null') WHEN 'null' THEN 0 WHEN 'number' THEN 1 WHEN 'string' THEN 2 WHEN 'boolean' THEN 3 ELSE 4 END)", expr)+dir,
			fmt.Sprintf("(CASE WHEN jsonb_typeof(%s) = 'number' THEN (%s #>> '{}')::numeric END)", expr, expr)+dir,
			fmt.Sprintf(`(CASE WHEN jsonb_typeof(%s) = 'string' THEN (%s #>> '{}') COLLATE "C" END)`, expr, expr)+dir,
			fmt.Sprintf("(CASE WHEN jsonb_typeof(%s) = 'boolean' THEN (%s #>> '{}')::boolean END)", expr, expr)+dir,
		)
	}
	return strings.Join(parts, ", ")
}

func (c *PostgresCollection) buildWriteBatch(docs []odm.Document) (string, []any, []string, error) {
	args := make([]any, 0, len(docs)*2)
	values := make([]string, 0, len(docs))
	ids := make([]string, 0, len(docs))

	for i, doc := range docs {
		docID, err := doc.ResolveID()
		if err != nil {
			return "", nil, nil, err
		}
		if strings.TrimSpace(docID) == "" {
			docID = c.store.opts.NewID()
		}
		payload, err := documentJSON(doc)
		if err != nil {
			return "", nil, nil, fmt.Errorf("encode document %q: %w", docID, err)
		}

		base := i*2 + 1
		values = append(values, fmt.Sprintf("($%d, $%d::jsonb)", base, base+1))
		args = append(args, docID, payload)
		ids = append(ids, docID)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(c.tableName())
	b.WriteString(" (")
	b.WriteString(quoteIdent(idColumn))
	b.WriteString(", ")
	b.WriteString(quoteIdent(docColumn))
	b.WriteString(") VALUES ")
	b.WriteString(strings.Join(values, ", "))
	b.WriteString(" ON CONFLICT (")
	b.WriteString(quoteIdent(idColumn))
	b.WriteString(") DO UPDATE SET ")
	b.WriteString(quoteIdent(docColumn) + " = EXCLUDED." + quoteIdent(docColumn))

	return b.String(), args, ids, nil
}

func (c *PostgresCollection) filterConfig() FilterSQLConfig {
	return FilterSQLConfig{
		IDExpr:  quoteIdent(idColumn),
		DocExpr: quoteIdent(docColumn),
	}
}

func (c *PostgresCollection) logQuery(op string, plan queryPlan) {
	c.store.opts.Logger.WithFields(logrus.Fields{
		"collection": c.name,
		"op":         op,
		"sql":        plan.query,
		"args":       len(plan.args),
	}).Debug("postgres query")
}

func (c *PostgresCollection) tableName() string {
	return qualifiedTable(c.store.opts.Schema, c.name)
}
