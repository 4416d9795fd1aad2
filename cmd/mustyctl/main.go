// Command mustyctl explains how a filter lowers for each backend and runs
// filters against a configured store.
//
//	mustyctl explain --filter '{"conditions":[{"key":"age","op":"gt","value":{"kind":"int32","int":30}}]}'
//	mustyctl find --backend postgres --collection users --filter-file adults.json --sort -age --limit 10
//	mustyctl count --backend mongo --collection users --filter-file adults.msgpack
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/internal/backend"
	"github.com/tsanga/musty/internal/config"
)

const usage = `usage: mustyctl <command> [flags]

commands:
  explain   print the mongo, postgres and mssql lowering of a filter
  find      print the documents of a collection matching a filter
  count     print the number of documents matching a filter

run "mustyctl <command> --help" for the flags of a command
`

var errUsage = errors.New("usage")

type commandOptions struct {
	filter     string
	filterFile string
	collection string
	seedFile   string
	sort       []string
	limit      int64
	skip       int64
	timeout    time.Duration
	dump       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		return 2
	}
	command, rest := args[0], args[1:]
	switch command {
	case "explain", "find", "count":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}

	fs := pflag.NewFlagSet("mustyctl "+command, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.BindFlags(fs)
	opts := bindCommandFlags(fs)
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := execute(ctx, command, fs, opts, stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		fmt.Fprintf(stderr, "%s %v\n", color.RedString("error:"), err)
		return 1
	}
	return 0
}

func bindCommandFlags(fs *pflag.FlagSet) *commandOptions {
	opts := &commandOptions{}
	fs.StringVarP(&opts.filter, "filter", "f", "", "filter as JSON")
	fs.StringVar(&opts.filterFile, "filter-file", "", "read the filter from a .json or .msgpack file")
	fs.StringVarP(&opts.collection, "collection", "c", "", "collection name")
	fs.StringVar(&opts.seedFile, "seed", "", "save the documents of a JSON array file before querying")
	fs.StringSliceVar(&opts.sort, "sort", nil, "sort fields, prefix with - for descending")
	fs.Int64Var(&opts.limit, "limit", 0, "maximum number of documents, 0 for all")
	fs.Int64Var(&opts.skip, "skip", 0, "number of documents to skip")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout for store operations")
	fs.BoolVar(&opts.dump, "dump", false, "dump the decoded filter and results")
	return opts
}

func execute(ctx context.Context, command string, fs *pflag.FlagSet, opts *commandOptions, stdout io.Writer) error {
	cfg, err := config.Load("", fs)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}

	f, err := readFilter(opts)
	if err != nil {
		return err
	}

	if command == "explain" {
		return explain(stdout, f, opts.dump)
	}

	if strings.TrimSpace(opts.collection) == "" {
		return fmt.Errorf("%w: --collection is required for %s", errUsage, command)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	store, closeStore, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	logger.WithField("backend", cfg.Backend).WithField("collection", opts.collection).Debug("running " + command)
	return query(ctx, command, store, f, opts, stdout)
}

func readFilter(opts *commandOptions) (filter.Filter, error) {
	switch {
	case opts.filterFile != "" && opts.filter != "":
		return filter.Filter{}, fmt.Errorf("%w: --filter and --filter-file are exclusive", errUsage)
	case opts.filterFile != "":
		data, err := os.ReadFile(opts.filterFile)
		if err != nil {
			return filter.Filter{}, fmt.Errorf("read filter: %w", err)
		}
		switch strings.ToLower(filepath.Ext(opts.filterFile)) {
		case ".msgpack", ".mp":
			return filter.DecodeMsgpack(data)
		default:
			return filter.ParseJSON(data)
		}
	case strings.TrimSpace(opts.filter) != "":
		return filter.ParseJSON([]byte(opts.filter))
	default:
		return filter.New(), nil
	}
}
