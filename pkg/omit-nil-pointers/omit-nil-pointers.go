package omitnilpointers

import (
	"reflect"
)

// OmitNilPointers strips nil-valued entries from a patch map and dereferences
// pointer values, leaving only the fields that were actually set.
func OmitNilPointers(fields map[string]any) map[string]any {
	omitted := make(map[string]any, len(fields))
	for key, value := range fields {
		if value == nil {
			continue
		}

		v := reflect.ValueOf(value)
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				continue
			}
			omitted[key] = v.Elem().Interface()
		} else {
			omitted[key] = value
		}
	}

	return omitted
}
