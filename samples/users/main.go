package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/id"
	"github.com/tsanga/musty/internal/backend"
	"github.com/tsanga/musty/internal/config"
	"github.com/tsanga/musty/odm"
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

func (u *User) GetID() id.ID      { return u.ID }
func (u *User) SetID(value id.ID) { u.ID = value }

func (User) CollectionName() string { return "sample_users" }

type UserFilter struct{ filter.Base }

func (User) Filter() *UserFilter { return filter.For[UserFilter]() }

func (f *UserFilter) Age() filter.OrderedFieldFilter[*UserFilter, int32] {
	return filter.OrderedField[int32](f, "age")
}

func (f *UserFilter) Address(configure func(*AddressFilter) *AddressFilter) *UserFilter {
	return filter.Child(f, "address", configure)
}

type AddressFilter struct{ filter.Base }

func (f *AddressFilter) Country() filter.FieldFilter[*AddressFilter, string] {
	return filter.Field[string](f, "country")
}

func fakeUsers() []*User {
	return []*User{
		{Name: "alex", Age: 34, Address: Address{Country: "US", City: "Austin"}, Aliases: []string{"al", "lex"}},
		{Name: "jonah", Age: 19, Address: Address{Country: "CA", City: "Toronto"}, Aliases: []string{"jo"}},
		{Name: "mira", Age: 41, Address: Address{Country: "US", City: "Boston"}},
		{Name: "sofia", Age: 28, Address: Address{Country: "ES", City: "Valencia"}},
	}
}

func main() {
	fs := pflag.CommandLine
	config.BindFlags(fs)
	country := fs.String("country", "US", "country to query")
	minAge := fs.Int32("min-age", 30, "exclusive lower age bound")
	keep := fs.Bool("keep", false, "keep the sample documents after the run")
	pflag.Parse()

	cfg, err := config.Load("", fs)
	if err != nil {
		exitf("load config: %v", err)
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		exitf("create logger: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, release, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		exitf("open %s store: %v", cfg.Backend, err)
	}
	defer release()

	if _, err := store.EnsureCollection(ctx, odm.CollectionName[*User]()); err != nil {
		exitf("ensure collection: %v", err)
	}
	users, err := odm.NewRepository(store, odm.RepositoryOptions[*User]{})
	if err != nil {
		exitf("create repository: %v", err)
	}

	seeded := fakeUsers()
	if err := users.SaveAll(ctx, seeded...); err != nil {
		exitf("save users: %v", err)
	}
	if !*keep {
		defer func() {
			ids := make([]id.ID, 0, len(seeded))
			for _, u := range seeded {
				ids = append(ids, u.ID)
			}
			if _, err := users.Delete(context.Background(), ids...); err != nil {
				logger.WithError(err).Warn("delete sample users")
			}
		}()
	}

	q := User{}.Filter().
		Age().Gt(*minAge).
		Address(func(a *AddressFilter) *AddressFilter {
			return a.Country().Eq(*country)
		})

	found, err := users.Find(ctx, q, odm.FindOptions{Sort: []odm.SortField{odm.Desc("age")}})
	if err != nil {
		exitf("find: %v", err)
	}
	total, err := users.Count(ctx, nil)
	if err != nil {
		exitf("count: %v", err)
	}

	title := color.New(color.FgGreen, color.Bold)
	title.Printf("Saved %d users on the %s backend.\n", len(seeded), cfg.Backend)
	fmt.Printf("Collection %q now holds %d documents.\n", users.Collection().Name(), total)
	fmt.Printf("\nUsers older than %d living in %s:\n", *minAge, *country)
	for i, u := range found {
		fmt.Printf("%d. id=%s | name=%q | age=%d | city=%q\n", i+1, u.ID, u.Name, u.Age, u.Address.City)
	}

	first, err := users.GetBy(ctx, "name", "jonah")
	if err != nil {
		exitf("get by name: %v", err)
	}
	fmt.Printf("\nLookup by name: %s is %d and lives in %s.\n", first.Name, first.Age, first.Address.City)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
