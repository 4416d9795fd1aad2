package odm

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"

	"github.com/tsanga/musty/id"
)

// Model is a record type stored in a collection. Implementations are
// usually pointer types such as *User.
type Model interface {
	GetID() id.ID
	SetID(id.ID)
}

// Namer overrides the derived collection name of a model.
type Namer interface {
	CollectionName() string
}

// CollectionName returns the collection of the model type M: the result of
// its CollectionName method when it implements Namer, otherwise the
// snake_case plural of the type name ("UserProfile" -> "user_profiles").
func CollectionName[M any]() string {
	t := reflect.TypeFor[M]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if namer, ok := reflect.New(t).Interface().(Namer); ok {
		if name := namer.CollectionName(); name != "" {
			return name
		}
	}
	return inflection.Plural(SnakeCase(t.Name()))
}

// SnakeCase converts a Go identifier into snake_case, keeping acronyms
// together ("HTTPServer" -> "http_server").
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
