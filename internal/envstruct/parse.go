// Package envstruct fills configuration structs from environment variables.
package envstruct

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEnvNotSet    = errors.New("environment variable not set")
	ErrInvalidValue = errors.New("v must be a pointer to a struct")
)

//nolint:gochecknoglobals // reflect type used for comparison only.
var durationType = reflect.TypeFor[time.Duration]()

// Populate populates the fields of the pointer to struct v with values from the environment.
//
// lookupEnv is used to look up environment variables. It has the same signature as [os.LookupEnv].
// Fields tagged with `env:"ENV_VAR"` are read from ENV_VAR, falling back to the `envDefault:"value"` tag.
// A tagged field without either returns ErrEnvNotSet.
//
// Supported field types are string, int, bool, time.Duration and []string. Slices are read as comma-separated
// values with surrounding whitespace and empty items removed.
func Populate(v any, lookupEnv func(string) (string, bool)) error {
	ptr := reflect.ValueOf(v)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return fmt.Errorf("%w: not pointer: %v", ErrInvalidValue, v)
	}
	target := ptr.Elem()
	if target.Kind() != reflect.Struct {
		return fmt.Errorf("%w: not struct: %v", ErrInvalidValue, v)
	}

	var errs []error
	for i := range target.NumField() {
		field := target.Field(i)
		structField := target.Type().Field(i)
		name, tagged := structField.Tag.Lookup("env")
		if !tagged {
			continue
		}
		if !field.CanSet() {
			errs = append(errs, fmt.Errorf("%w: cannot set field: %s", ErrInvalidValue, structField.Name))
			continue
		}
		raw, err := lookup(name, structField.Tag, lookupEnv)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err = assign(field, raw); err != nil {
			errs = append(errs, fmt.Errorf("%w: field %s from %s: %w", ErrInvalidValue, structField.Name, name, err))
		}
	}

	return errors.Join(errs...)
}

func lookup(name string, tag reflect.StructTag, lookupEnv func(string) (string, bool)) (string, error) {
	if value, ok := lookupEnv(name); ok {
		return value, nil
	}
	if value, ok := tag.Lookup("envDefault"); ok {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrEnvNotSet, name)
}

func assign(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		if raw == "" {
			field.SetInt(0)
			return nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() { //nolint:exhaustive // unsupported kinds handled by default.
	case reflect.String:
		field.SetString(raw)
	case reflect.Int:
		if raw == "" {
			field.SetInt(0)
			return nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		if raw == "" {
			field.SetBool(false)
			return nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse bool: %w", err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		var items []string
		for item := range strings.SplitSeq(raw, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				items = append(items, trimmed)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported type %s", field.Type())
	}
	return nil
}
