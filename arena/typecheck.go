package arena

import (
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
)

var relocatable sync.Map // reflect.Type -> error (nil when ok)

// CheckType reports whether T can live in an arena: its bytes must mean the
// same thing at any address, so it may not contain Go pointers of any kind.
func CheckType[T any]() error {
	t := reflect.TypeFor[T]()
	if v, ok := relocatable.Load(t); ok {
		if v == nil {
			return nil
		}
		return v.(error)
	}
	err := checkPlain(t, t.String())
	relocatable.Store(t, err)
	return err
}

func checkPlain(t reflect.Type, path string) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return checkPlain(t.Elem(), path+"[]")
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if err := checkPlain(f.Type, path+"."+f.Name); err != nil {
				return err
			}
		}
		return nil
	default:
		// Pointers, uintptr, slices, strings, maps, chans, funcs, interfaces.
		return errors.Wrapf(ErrUnsupportedType, "%s has kind %s", path, t.Kind())
	}
}
