package filter_test

import (
	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/id"
)

type Address struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

type Label struct {
	Name  string `json:"name"`
	Score int32  `json:"score"`
}

type User struct {
	ID      id.ID    `json:"_id"`
	Name    string   `json:"name"`
	Age     int32    `json:"age"`
	Active  bool     `json:"active"`
	Address Address  `json:"address" musty:",child"`
	Aliases []string `json:"aliases"`
	Labels  []Label  `json:"labels"`
	secret  string
}

type UserFilter struct{ filter.Base }

func (User) Filter() *UserFilter { return filter.For[UserFilter]() }

func (f *UserFilter) ID() filter.FieldFilter[*UserFilter, id.ID] {
	return filter.Field[id.ID](f, "_id")
}

func (f *UserFilter) Name() filter.OrderedFieldFilter[*UserFilter, string] {
	return filter.OrderedField[string](f, "name")
}

func (f *UserFilter) Age() filter.OrderedFieldFilter[*UserFilter, int32] {
	return filter.OrderedField[int32](f, "age")
}

func (f *UserFilter) Active() filter.FieldFilter[*UserFilter, bool] {
	return filter.Field[bool](f, "active")
}

func (f *UserFilter) Aliases() filter.ListFieldFilter[*UserFilter, string] {
	return filter.ListField[string](f, "aliases")
}

func (f *UserFilter) Address(configure func(*AddressFilter) *AddressFilter) *UserFilter {
	return filter.Child(f, "address", configure)
}

func (f *UserFilter) Labels(configure func(*LabelFilter) *LabelFilter) *UserFilter {
	return filter.ElemMatch(f, "labels", configure)
}

func (f *UserFilter) Any(configure func(*UserFilter) *UserFilter) *UserFilter {
	return filter.Any(f, configure)
}

func (f *UserFilter) All(configure func(*UserFilter) *UserFilter) *UserFilter {
	return filter.All(f, configure)
}

type AddressFilter struct{ filter.Base }

func (f *AddressFilter) Country() filter.OrderedFieldFilter[*AddressFilter, string] {
	return filter.OrderedField[string](f, "country")
}

func (f *AddressFilter) City() filter.OrderedFieldFilter[*AddressFilter, string] {
	return filter.OrderedField[string](f, "city")
}

type LabelFilter struct{ filter.Base }

func (f *LabelFilter) Name() filter.OrderedFieldFilter[*LabelFilter, string] {
	return filter.OrderedField[string](f, "name")
}

func (f *LabelFilter) Score() filter.OrderedFieldFilter[*LabelFilter, int32] {
	return filter.OrderedField[int32](f, "score")
}

type Status string
