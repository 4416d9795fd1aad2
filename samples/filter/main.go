package main

import (
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/id"
	mongostore "github.com/tsanga/musty/stores/mongo"
	"github.com/tsanga/musty/stores/postgres"
)

type Address struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

type User struct {
	ID      id.ID    `json:"_id"`
	Name    string   `json:"name"`
	Age     int32    `json:"age"`
	Address Address  `json:"address"`
	Aliases []string `json:"aliases"`
}

type UserFilter struct{ filter.Base }

func (User) Filter() *UserFilter { return filter.For[UserFilter]() }

func (f *UserFilter) Name() filter.OrderedFieldFilter[*UserFilter, string] {
	return filter.OrderedField[string](f, "name")
}

func (f *UserFilter) Age() filter.OrderedFieldFilter[*UserFilter, int32] {
	return filter.OrderedField[int32](f, "age")
}

func (f *UserFilter) Aliases() filter.ListFieldFilter[*UserFilter, string] {
	return filter.ListField[string](f, "aliases")
}

func (f *UserFilter) Address(configure func(*AddressFilter) *AddressFilter) *UserFilter {
	return filter.Child(f, "address", configure)
}

func (f *UserFilter) Any(configure func(*UserFilter) *UserFilter) *UserFilter {
	return filter.Any(f, configure)
}

type AddressFilter struct{ filter.Base }

func (f *AddressFilter) Country() filter.OrderedFieldFilter[*AddressFilter, string] {
	return filter.OrderedField[string](f, "country")
}

func main() {
	name := pflag.String("name", "alex", "name to match")
	minAge := pflag.Int32("min-age", 30, "exclusive lower age bound")
	country := pflag.String("country", "US", "country of the address")
	dump := pflag.Bool("dump", false, "dump the filter tree")
	pflag.Parse()

	built := User{}.Filter().
		Name().Eq(*name).
		Age().Gt(*minAge).
		Address(func(a *AddressFilter) *AddressFilter {
			return a.Country().Eq(*country)
		}).
		Any(func(u *UserFilter) *UserFilter {
			return u.Aliases().Contains(func(v *filter.VecFilter[string]) *filter.VecFilter[string] {
				return v.Entries("al", "lex")
			})
		}).
		Build()

	section := color.New(color.FgGreen, color.Bold)

	if *dump {
		section.Println("filter tree")
		spew.Dump(built)
	}

	wire, err := built.MarshalJSON()
	if err != nil {
		exitf("encode filter: %v", err)
	}
	section.Println("wire form")
	fmt.Println(string(wire))

	doc, err := mongostore.Lower(built)
	if err != nil {
		exitf("lower for mongo: %v", err)
	}
	ext, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		exitf("encode mongo filter: %v", err)
	}
	section.Println("mongo")
	fmt.Println(string(ext))

	where, args, _, err := postgres.CompileFilterSQL(built, postgres.FilterSQLConfig{IDExpr: `"id"`, DocExpr: `"doc"`}, 1)
	if err != nil {
		exitf("compile for postgres: %v", err)
	}
	section.Println("postgres")
	fmt.Println("WHERE " + where)
	for i, arg := range args {
		if raw, ok := arg.([]byte); ok {
			arg = string(raw)
		}
		fmt.Printf("  $%d = %v\n", i+1, arg)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
