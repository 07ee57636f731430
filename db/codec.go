package db

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// toHash flattens a JSON-tagged struct into hash fields. Scalars are stored as
// their plain text; nested values (slices, maps, objects) are stored as JSON.
// Null and omitted fields are not written.
func toHash(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("entity is not an object: %w", err)
	}

	out := make(map[string]interface{}, len(fields))
	for name, value := range fields {
		value = bytes.TrimSpace(value)
		if len(value) == 0 || bytes.Equal(value, []byte("null")) {
			continue
		}
		switch value[0] {
		case '"':
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return nil, fmt.Errorf("failed to decode field %s: %w", name, err)
			}
			out[name] = s
		default:
			// numbers, booleans, arrays and objects keep their JSON text
			out[name] = string(value)
		}
	}
	return out, nil
}

// jsonStringHook turns JSON-encoded hash fields back into slices, maps and structs.
func jsonStringHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Slice, reflect.Map, reflect.Struct:
	default:
		return data, nil
	}
	if to == reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	s := reflect.ValueOf(data).String()
	if s == "" {
		return reflect.Zero(to).Interface(), nil
	}
	ptr := reflect.New(to)
	if err := json.Unmarshal([]byte(s), ptr.Interface()); err != nil {
		return nil, fmt.Errorf("field is not valid JSON for %s: %w", to, err)
	}
	return ptr.Elem().Interface(), nil
}

// newDecoder builds the shared decoder. Patches reject unknown fields and
// replace (rather than extend) slices and maps.
func newDecoder(out interface{}, patch bool) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      patch,
		ZeroFields:       patch,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			jsonStringHook,
		),
	})
}

// fromHash decodes the fields returned by HGETALL into out.
func fromHash(fields map[string]string, out interface{}) error {
	dec, err := newDecoder(out, false)
	if err != nil {
		return err
	}
	if err := dec.Decode(fields); err != nil {
		return fmt.Errorf("failed to decode entity: %w", err)
	}
	return nil
}

// protectedFields can never be changed through a patch.
var protectedFields = []string{"id", "createdAt", "studentIds", "classIds"}

// mergePatch applies a partial update (as decoded from a JSON body) onto out.
// Unknown fields are rejected.
func mergePatch(patch map[string]interface{}, out interface{}) error {
	clean := make(map[string]interface{}, len(patch))
	for k, v := range patch {
		clean[k] = v
	}
	for _, k := range protectedFields {
		delete(clean, k)
	}
	dec, err := newDecoder(out, true)
	if err != nil {
		return err
	}
	if err := dec.Decode(clean); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
