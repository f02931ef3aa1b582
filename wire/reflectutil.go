package wire

import (
	"fmt"
	"reflect"
	"strings"
)

func anyToString(v any) string {
	return fmt.Sprintf("%v", v)
}

// jsonFieldName returns the name a struct field should use as its
// envelope map key: its `json` tag name if present, else the Go field
// name, matching the convention the rest of the stack's jsoniter usage
// already expects.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name := strings.Split(tag, ",")[0]
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}
