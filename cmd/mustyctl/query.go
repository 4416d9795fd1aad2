package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/goccy/go-json"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/odm"
)

func query(ctx context.Context, command string, store odm.Store, f filter.Filter, opts *commandOptions, w io.Writer) error {
	collection, err := store.EnsureCollection(ctx, opts.collection)
	if err != nil {
		return err
	}

	if opts.seedFile != "" {
		docs, err := readSeed(opts.seedFile)
		if err != nil {
			return err
		}
		if _, err := collection.SaveMany(ctx, docs); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	if command == "count" {
		count, err := collection.Count(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, count)
		return nil
	}

	docs, err := collection.Find(ctx, f, odm.FindOptions{
		Limit: opts.limit,
		Skip:  opts.skip,
		Sort:  parseSort(opts.sort),
	})
	if err != nil {
		return err
	}
	if opts.dump {
		spew.Fdump(w, docs)
		return nil
	}
	for _, doc := range docs {
		line, err := odm.MarshalDocument(doc)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(line))
	}
	return nil
}

func parseSort(fields []string) []odm.SortField {
	out := make([]odm.SortField, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if name, ok := strings.CutPrefix(field, "-"); ok {
			out = append(out, odm.Desc(name))
			continue
		}
		out = append(out, odm.Asc(strings.TrimPrefix(field, "+")))
	}
	return out
}

// readSeed decodes a JSON array of documents.
func readSeed(path string) ([]odm.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	docs := make([]odm.Document, 0, len(raw))
	for i, item := range raw {
		doc, err := odm.UnmarshalDocument(item)
		if err != nil {
			return nil, fmt.Errorf("seed document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
