package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/tsanga/musty/filter"
	mongostore "github.com/tsanga/musty/stores/mongo"
	"github.com/tsanga/musty/stores/mssql"
	"github.com/tsanga/musty/stores/postgres"
)

var header = color.New(color.FgCyan, color.Bold)

func explain(w io.Writer, f filter.Filter, dump bool) error {
	if err := f.Validate(); err != nil {
		return err
	}

	if dump {
		header.Fprintln(w, "# filter")
		spew.Fdump(w, f)
	}

	doc, err := mongostore.Lower(f)
	if err != nil {
		return fmt.Errorf("mongo: %w", err)
	}
	ext, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return fmt.Errorf("mongo: encode filter: %w", err)
	}
	header.Fprintln(w, "# mongo")
	fmt.Fprintln(w, string(ext))

	pgSQL, pgArgs, _, err := postgres.CompileFilterSQL(f, postgres.FilterSQLConfig{IDExpr: `"id"`, DocExpr: `"doc"`}, 1)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	header.Fprintln(w, "# postgres")
	printWhere(w, pgSQL, pgArgs, "$")

	msSQL, msArgs, pushed, err := mssql.ExplainFilter(f)
	if err != nil {
		return fmt.Errorf("mssql: %w", err)
	}
	header.Fprintln(w, "# mssql")
	if !pushed {
		fmt.Fprintln(w, color.YellowString("evaluated in process after loading the collection"))
		return nil
	}
	printWhere(w, msSQL, msArgs, "@p")
	return nil
}

func printWhere(w io.Writer, where string, args []any, placeholder string) {
	if where == "" {
		fmt.Fprintln(w, "(no WHERE clause)")
		return
	}
	fmt.Fprintln(w, "WHERE "+where)
	for i, arg := range args {
		fmt.Fprintf(w, "  %s%d = %s\n", placeholder, i+1, formatArg(arg))
	}
}

func formatArg(arg any) string {
	switch v := arg.(type) {
	case []byte:
		return string(v)
	case string:
		return fmt.Sprintf("%q", v)
	case []string:
		return "{" + strings.Join(v, ",") + "}"
	default:
		return fmt.Sprint(v)
	}
}
