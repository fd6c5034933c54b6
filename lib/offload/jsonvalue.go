// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
)

// maxJSONDepth bounds recursion when validating nested references.
const maxJSONDepth = 64

// ValidateJSONValue checks that v is built only from JSON-compatible
// values: nil, bool, string, json.Number, finite numbers, slices and
// arrays of valid values, and string-keyed maps of valid values.
// []byte is rejected: a raw binary handle does not survive the JSON
// payload converter as itself.
func ValidateJSONValue(v any) error {
	if err := validateJSON(reflect.ValueOf(v), "$", 0); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return nil
}

func validateJSON(value reflect.Value, path string, depth int) error {
	if depth > maxJSONDepth {
		return fmt.Errorf("%s: nesting deeper than %d", path, maxJSONDepth)
	}
	if !value.IsValid() {
		return nil
	}
	if value.Type() == reflect.TypeOf(json.Number("")) {
		if _, err := value.Interface().(json.Number).Float64(); err != nil {
			return fmt.Errorf("%s: invalid json.Number %q", path, value.String())
		}
		return nil
	}

	switch value.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil

	case reflect.Float32, reflect.Float64:
		f := value.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%s: non-finite number %v", path, f)
		}
		return nil

	case reflect.Interface:
		if value.IsNil() {
			return nil
		}
		return validateJSON(value.Elem(), path, depth)

	case reflect.Slice, reflect.Array:
		if value.Type().Elem().Kind() == reflect.Uint8 {
			return fmt.Errorf("%s: binary handle of type %s", path, value.Type())
		}
		if value.Kind() == reflect.Slice && value.IsNil() {
			return nil
		}
		for i := range value.Len() {
			if err := validateJSON(value.Index(i), fmt.Sprintf("%s[%d]", path, i), depth+1); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		if value.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%s: map key type %s is not string", path, value.Type().Key())
		}
		iterator := value.MapRange()
		for iterator.Next() {
			key := iterator.Key().String()
			if err := validateJSON(iterator.Value(), path+"."+key, depth+1); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%s: %s is not a JSON value", path, value.Type())
	}
}

// encodeReference validates a store-returned reference and renders it
// as raw JSON for embedding in a [Reference].
func encodeReference(ref any) (json.RawMessage, error) {
	if ref == nil {
		return nil, fmt.Errorf("%w: store returned a null reference", ErrInvalidReference)
	}
	if err := ValidateJSONValue(ref); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return encoded, nil
}

// decodeReference turns a raw encoded reference back into the plain
// JSON value handed to Store.Fetch. Numbers decode as json.Number so
// integers beyond 2^53 keep every digit.
func decodeReference(encoded json.RawMessage) (any, error) {
	if len(encoded) == 0 {
		return nil, fmt.Errorf("%w: empty reference", ErrInvalidReference)
	}
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()
	var ref any
	if err := decoder.Decode(&ref); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after reference", ErrInvalidReference)
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: null reference", ErrInvalidReference)
	}
	return ref, nil
}
