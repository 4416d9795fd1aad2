package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/odm"
	"github.com/tsanga/musty/stores/memory"
)

// MSSQLCollection is a SQL Server-backed document collection.
type MSSQLCollection struct {
	store *MSSQLStore
	name  string
}

type queryPlan struct {
	query string
	args  []any
}

func (c *MSSQLCollection) Name() string {
	return c.name
}

func (c *MSSQLCollection) Save(ctx context.Context, doc odm.Document) (string, error) {
	ids, err := c.SaveMany(ctx, []odm.Document{doc})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// SaveMany upserts docs, one transaction per maxRowsPerStatement documents.
func (c *MSSQLCollection) SaveMany(ctx context.Context, docs []odm.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	upsertQuery := buildUpsertQuery(c.tableName())
	ids := make([]string, 0, len(docs))
	for start := 0; start < len(docs); start += maxRowsPerStatement {
		end := start + maxRowsPerStatement
		if end > len(docs) {
			end = len(docs)
		}

		tx, err := c.store.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		batchIDs, err := c.writeBatch(ctx, tx, docs[start:end], upsertQuery)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		ids = append(ids, batchIDs...)
	}
	return ids, nil
}

func (c *MSSQLCollection) Get(ctx context.Context, docID string) (odm.Document, error) {
	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = @p1",
		quoteIdent(idColumn),
		quoteIdent(docColumn),
		c.tableName(),
		quoteIdent(idColumn),
	)

	var gotID string
	var raw string
	if err := c.store.db.QueryRowContext(ctx, query, docID).Scan(&gotID, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, odm.ErrNotFound
		}
		return nil, err
	}
	return parseDocument(gotID, raw)
}

func (c *MSSQLCollection) Delete(ctx context.Context, ids []string) (int64, error) {
	var deleted int64
	for start := 0; start < len(ids); start += maxRowsPerStatement {
		end := start + maxRowsPerStatement
		if end > len(ids) {
			end = len(ids)
		}

		plan := c.buildDeletePlan(ids[start:end])
		result, err := c.store.db.ExecContext(ctx, plan.query, plan.args...)
		if err != nil {
			return deleted, err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return deleted, err
		}
		deleted += rowsAffected
	}
	return deleted, nil
}

// Find pushes f down when it can and always sorts and pages in process, so
// that ordering across JSON types matches the other stores.
func (c *MSSQLCollection) Find(ctx context.Context, f filter.Filter, opts odm.FindOptions) ([]odm.Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	plan, err := c.buildSelectPlan(f)
	if errors.Is(err, errFilterPushdownUnsupported) {
		c.logFallback("find", err)
		docs, err := c.loadDocuments(ctx, c.selectAllPlan())
		if err != nil {
			return nil, err
		}
		return memory.Select(docs, f, opts)
	}
	if err != nil {
		return nil, err
	}

	c.logQuery("find", plan)
	docs, err := c.loadDocuments(ctx, plan)
	if err != nil {
		return nil, err
	}
	memory.Sort(docs, opts.SortOrDefault())
	return memory.Page(docs, opts.Skip, opts.Limit), nil
}

func (c *MSSQLCollection) FindOne(ctx context.Context, f filter.Filter) (odm.Document, error) {
	docs, err := c.Find(ctx, f, odm.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, odm.ErrNotFound
	}
	return docs[0], nil
}

func (c *MSSQLCollection) Count(ctx context.Context, f filter.Filter) (int64, error) {
	plan, err := c.buildCountPlan(f)
	if errors.Is(err, errFilterPushdownUnsupported) {
		c.logFallback("count", err)
		docs, err := c.loadDocuments(ctx, c.selectAllPlan())
		if err != nil {
			return 0, err
		}
		matched, err := memory.Select(docs, f, odm.FindOptions{})
		if err != nil {
			return 0, err
		}
		return int64(len(matched)), nil
	}
	if err != nil {
		return 0, err
	}

	c.logQuery("count", plan)
	var count int64
	if err := c.store.db.QueryRowContext(ctx, plan.query, plan.args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *MSSQLCollection) buildSelectPlan(f filter.Filter) (queryPlan, error) {
	whereSQL, args, _, err := compileMSSQLFilterSQL(f, 1)
	if err != nil {
		return queryPlan{}, err
	}
	plan := c.selectAllPlan()
	if whereSQL != "" {
		plan.query += " WHERE " + whereSQL
		plan.args = args
	}
	return plan, nil
}

func (c *MSSQLCollection) buildCountPlan(f filter.Filter) (queryPlan, error) {
	whereSQL, args, _, err := compileMSSQLFilterSQL(f, 1)
	if err != nil {
		return queryPlan{}, err
	}
	query := fmt.Sprintf("SELECT COUNT_BIG(*) FROM %s", c.tableName())
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}
	return queryPlan{query: query, args: args}, nil
}

func (c *MSSQLCollection) buildDeletePlan(ids []string) queryPlan {
	args := make([]any, 0, len(ids))
	placeholders := make([]string, 0, len(ids))
	for i, docID := range ids {
		placeholders = append(placeholders, fmt.Sprintf("@p%d", i+1))
		args = append(args, docID)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		c.tableName(),
		quoteIdent(idColumn),
		strings.Join(placeholders, ", "),
	)
	return queryPlan{query: query, args: args}
}

func (c *MSSQLCollection) selectAllPlan() queryPlan {
	return queryPlan{
		query: fmt.Sprintf("SELECT %s, %s FROM %s", quoteIdent(idColumn), quoteIdent(docColumn), c.tableName()),
	}
}

// buildUpsertQuery returns an update-then-insert statement taking the id as
// @p1 and the document as @p2. The range lock keeps concurrent upserts of
// one id from both inserting.
func buildUpsertQuery(table string) string {
	return fmt.Sprintf(
		"UPDATE %s WITH (UPDLOCK, SERIALIZABLE) SET %s = @p2 WHERE %s = @p1; "+
			"IF @@ROWCOUNT = 0 BEGIN INSERT INTO %s (%s, %s) VALUES (@p1, @p2) END",
		table,
		quoteIdent(docColumn),
		quoteIdent(idColumn),
		table,
		quoteIdent(idColumn),
		quoteIdent(docColumn),
	)
}

func (c *MSSQLCollection) writeBatch(ctx context.Context, tx *sql.Tx, docs []odm.Document, upsertQuery string) ([]string, error) {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		docID, err := doc.ResolveID()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(docID) == "" {
			docID = c.store.opts.NewID()
		}
		payload, err := documentJSON(doc)
		if err != nil {
			return nil, fmt.Errorf("encode document %q: %w", docID, err)
		}
		if _, err := tx.ExecContext(ctx, upsertQuery, docID, payload); err != nil {
			return nil, err
		}
		ids = append(ids, docID)
	}
	return ids, nil
}

func (c *MSSQLCollection) loadDocuments(ctx context.Context, plan queryPlan) ([]odm.Document, error) {
	rows, err := c.store.db.QueryContext(ctx, plan.query, plan.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]odm.Document, 0)
	for rows.Next() {
		var docID string
		var raw string
		if err := rows.Scan(&docID, &raw); err != nil {
			return nil, err
		}
		doc, err := parseDocument(docID, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *MSSQLCollection) logQuery(op string, plan queryPlan) {
	c.store.opts.Logger.WithFields(logrus.Fields{
		"collection": c.name,
		"op":         op,
		"sql":        plan.query,
		"args":       len(plan.args),
		"pushdown":   true,
	}).Debug("mssql query")
}

func (c *MSSQLCollection) logFallback(op string, reason error) {
	c.store.opts.Logger.WithFields(logrus.Fields{
		"collection": c.name,
		"op":         op,
		"pushdown":   false,
		"reason":     reason.Error(),
	}).Debug("mssql filter evaluated in process")
}

func (c *MSSQLCollection) tableName() string {
	return qualifiedTable(c.store.opts.Schema, c.name)
}
