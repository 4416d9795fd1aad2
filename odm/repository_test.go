package odm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/id"
	"github.com/tsanga/musty/odm"
	"github.com/tsanga/musty/stores/memory"
)

type Address struct {
	Country string `json:"country"`
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

type UserFilter struct{ filter.Base }

func (f *UserFilter) Name() filter.OrderedFieldFilter[*UserFilter, string] {
	return filter.OrderedField[string](f, "name")
}

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

func newRepo(t *testing.T) *odm.Repository[*User] {
	t.Helper()
	repo, err := odm.NewRepository(memory.NewStore(memory.StoreOptions{}), odm.RepositoryOptions[*User]{})
	require.NoError(t, err)
	return repo
}

func seed(t *testing.T, repo *odm.Repository[*User]) []*User {
	t.Helper()
	users := []*User{
		{Name: "alex", Age: 34, Address: Address{Country: "US"}, Aliases: []string{"al"}},
		{Name: "jonah", Age: 19, Address: Address{Country: "CA"}},
		{Name: "mira", Age: 41, Address: Address{Country: "DE"}},
	}
	for _, u := range users {
		require.NoError(t, repo.Save(context.Background(), u))
		require.False(t, u.ID.IsNone())
	}
	return users
}

func TestRepository_CollectionName(t *testing.T) {
	assert.Equal(t, "users", newRepo(t).Collection().Name())
}

func TestRepository_SaveGetFind(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	users := seed(t, repo)

	got, err := repo.Get(ctx, users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, users[0], got)

	q := filter.For[UserFilter]().
		Name().Any(func(v *filter.VecFilter[string]) *filter.VecFilter[string] { return v.Entry("alex").Entry("jonah") }).
		Address(func(a *AddressFilter) *AddressFilter { return a.Country().Ne("CA") })
	found, err := repo.Find(ctx, q, odm.FindOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "alex", found[0].Name)

	count, err := repo.Count(ctx, filter.For[UserFilter]().Age().Gt(20))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	all, err := repo.Find(ctx, nil, odm.FindOptions{Sort: []odm.SortField{odm.Asc("age")}})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "jonah", all[0].Name)
}

func TestRepository_GetBy(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	seed(t, repo)

	u, err := repo.GetBy(ctx, "address.country", "DE")
	require.NoError(t, err)
	assert.Equal(t, "mira", u.Name)

	_, err = repo.GetBy(ctx, "name", "nobody")
	assert.ErrorIs(t, err, odm.ErrNotFound)

	_, err = repo.GetBy(ctx, "shoe_size", 42)
	assert.ErrorIs(t, err, filter.ErrUnknownField)
}

func TestRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	users := seed(t, repo)

	users[1].Age = 20
	require.NoError(t, repo.Save(ctx, users[1]))
	got, err := repo.Get(ctx, users[1].ID)
	require.NoError(t, err)
	assert.Equal(t, int32(20), got.Age)

	deleted, err := repo.Delete(ctx, users[0].ID, id.None())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	exists, err := repo.Exists(ctx, filter.For[UserFilter]().Name().Eq("alex"))
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.Get(ctx, id.None())
	assert.ErrorIs(t, err, odm.ErrNotFound)
}
