package config

import (
	"fmt"
	"io"
	"reflect"
	"time"
)

// Print writes v as flat "section.key = value" lines, one per leaf field.
func (c *Compositor) Print(w io.Writer, v any) {
	printConfig(w, reflect.ValueOf(v), "")
}

func printConfig(w io.Writer, val reflect.Value, prefix string) {
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		name := typ.Field(i).Name
		if tag := typ.Field(i).Tag.Get("mapstructure"); tag != "" {
			name = tag
		}
		key := prefix + name

		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				fmt.Fprintf(w, "%s = <nil>\n", key)
				continue
			}
			field = field.Elem()
		}

		switch {
		case field.Type() == reflect.TypeOf(time.Duration(0)):
			fmt.Fprintf(w, "%s = %s\n", key, time.Duration(field.Int()))
		case field.Kind() == reflect.Struct:
			printConfig(w, field, key+".")
		case field.Kind() == reflect.String:
			fmt.Fprintf(w, "%s = %q\n", key, field.String())
		default:
			fmt.Fprintf(w, "%s = %v\n", key, field.Interface())
		}
	}
}
