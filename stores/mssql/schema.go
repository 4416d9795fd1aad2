package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tsanga/musty/odm"
)

func (s *MSSQLStore) ensureBaseSchema(ctx context.Context) error {
	schemaLiteral := escapeSQLString(s.opts.Schema)
	query := fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL EXEC(N'CREATE SCHEMA %s')", schemaLiteral, quoteIdent(s.opts.Schema))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure schema %q: %w", s.opts.Schema, err)
	}

	return s.ensureCollectionsMetadataTable(ctx)
}

// ensureCollectionsMetadataTable creates the registry recording which
// tables hold documents and in which encoding.
func (s *MSSQLStore) ensureCollectionsMetadataTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		IF OBJECT_ID(N'%s', N'U') IS NULL
		BEGIN
			CREATE TABLE %s (
				%s NVARCHAR(255) NOT NULL PRIMARY KEY,
				%s NVARCHAR(64) NOT NULL
			)
		END
	`,
		escapeSQLString(objectIDName(s.opts.Schema, collectionMetaTable)),
		qualifiedTable(s.opts.Schema, collectionMetaTable),
		quoteIdent("name"),
		quoteIdent("format"),
	)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure collection metadata table: %w", err)
	}
	return nil
}

func (s *MSSQLStore) ensureTableWithValidation(ctx context.Context, name string) error {
	exists, err := s.tableExists(ctx, name)
	if err != nil {
		return err
	}

	if !exists {
		if err := s.createCollectionTable(ctx, name); err != nil {
			return err
		}
		s.opts.Logger.WithField("collection", name).Info("created mssql collection table")
		return s.upsertCollectionMetadata(ctx, name)
	}

	if err := s.validateCollectionSchema(ctx, name); err != nil {
		return err
	}

	format, found, err := s.readCollectionMetadata(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		if !s.opts.AutoMigrate {
			return fmt.Errorf("%w: missing collection metadata for %q", odm.ErrSchemaMismatch, name)
		}
		return s.upsertCollectionMetadata(ctx, name)
	}
	if format != documentFormat {
		return fmt.Errorf("%w: expected document format %q, got %q", odm.ErrSchemaMismatch, documentFormat, format)
	}
	return nil
}

func (s *MSSQLStore) tableExists(ctx context.Context, table string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
	`, s.opts.Schema, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table exists: %w", err)
	}

	return count > 0, nil
}

func (s *MSSQLStore) createCollectionTable(ctx context.Context, table string) error {
	query := fmt.Sprintf(`
		IF OBJECT_ID(N'%s', N'U') IS NULL
		BEGIN
			CREATE TABLE %s (
				%s NVARCHAR(255) NOT NULL PRIMARY KEY,
				%s NVARCHAR(MAX) NOT NULL DEFAULT N'{}'
			)
		END
	`,
		escapeSQLString(objectIDName(s.opts.Schema, table)),
		qualifiedTable(s.opts.Schema, table),
		quoteIdent(idColumn),
		quoteIdent(docColumn),
	)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create collection table %q: %w", table, err)
	}
	return nil
}

func (s *MSSQLStore) validateCollectionSchema(ctx context.Context, table string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
	`, s.opts.Schema, table)
	if err != nil {
		return fmt.Errorf("read schema columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]string)
	for rows.Next() {
		var columnName string
		var dataType string
		if err := rows.Scan(&columnName, &dataType); err != nil {
			return fmt.Errorf("scan schema columns: %w", err)
		}
		columns[columnName] = dataType
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate schema columns: %w", err)
	}

	idType, ok := columns[idColumn]
	if !ok {
		return fmt.Errorf("%w: missing column %q", odm.ErrSchemaMismatch, idColumn)
	}
	if !isStringType(idType) {
		return fmt.Errorf("%w: expected %q to be string-compatible type, got %q", odm.ErrSchemaMismatch, idColumn, idType)
	}

	if err := s.ensurePrimaryKeyOnID(ctx, table); err != nil {
		return err
	}

	docType, hasDoc := columns[docColumn]
	if !hasDoc {
		if !s.opts.AutoMigrate {
			return fmt.Errorf("%w: missing column %q", odm.ErrSchemaMismatch, docColumn)
		}
		return s.addDocColumn(ctx, table)
	}
	if !isStringType(docType) {
		return fmt.Errorf("%w: expected %q to be string-compatible type, got %q", odm.ErrSchemaMismatch, docColumn, docType)
	}

	return nil
}

func (s *MSSQLStore) ensurePrimaryKeyOnID(ctx context.Context, table string) error {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		INNER JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
			AND tc.TABLE_NAME = kcu.TABLE_NAME
		WHERE tc.TABLE_SCHEMA = @p1
			AND tc.TABLE_NAME = @p2
			AND tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
			AND kcu.COLUMN_NAME = @p3
	`, s.opts.Schema, table, idColumn).Scan(&count)
	if err != nil {
		return fmt.Errorf("check primary key: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: primary key on %q is required", odm.ErrSchemaMismatch, idColumn)
	}
	return nil
}

func (s *MSSQLStore) addDocColumn(ctx context.Context, table string) error {
	query := fmt.Sprintf("ALTER TABLE %s ADD %s NVARCHAR(MAX) NOT NULL DEFAULT N'{}'", qualifiedTable(s.opts.Schema, table), quoteIdent(docColumn))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("auto-migrate doc column: %w", err)
	}
	return nil
}

func (s *MSSQLStore) readCollectionMetadata(ctx context.Context, collectionName string) (format string, found bool, err error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = @p1",
		quoteIdent("format"),
		qualifiedTable(s.opts.Schema, collectionMetaTable),
		quoteIdent("name"),
	)

	err = s.db.QueryRowContext(ctx, query, collectionName).Scan(&format)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read collection metadata: %w", err)
	}

	return format, true, nil
}

func (s *MSSQLStore) upsertCollectionMetadata(ctx context.Context, collectionName string) error {
	query := fmt.Sprintf(`
		MERGE %s AS target
		USING (
			SELECT @p1 AS %s, @p2 AS %s
		) AS src
		ON target.%s = src.%s
		WHEN MATCHED THEN
			UPDATE SET target.%s = src.%s
		WHEN NOT MATCHED THEN
			INSERT (%s, %s)
			VALUES (src.%s, src.%s);
	`,
		qualifiedTable(s.opts.Schema, collectionMetaTable),
		quoteIdent("name"),
		quoteIdent("format"),
		quoteIdent("name"),
		quoteIdent("name"),
		quoteIdent("format"),
		quoteIdent("format"),
		quoteIdent("name"),
		quoteIdent("format"),
		quoteIdent("name"),
		quoteIdent("format"),
	)

	if _, err := s.db.ExecContext(ctx, query, collectionName, documentFormat); err != nil {
		return fmt.Errorf("upsert collection metadata: %w", err)
	}
	return nil
}
