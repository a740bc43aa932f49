package bridge

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
)

// WriteResponse writes one response as a single JSON line. Results coming
// back from the service can carry shapes json.Marshal rejects; those are
// sanitized and retried so the bridge never fails while responding.
func WriteResponse(w io.Writer, resp Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		resp.ID = sanitize(resp.ID)
		resp.Result = sanitize(resp.Result)
		b, err = json.Marshal(resp)
	}
	if err != nil {
		b, _ = json.Marshal(Response{OK: false, Error: "encode response: " + err.Error()})
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// sanitize converts a value into something json.Marshal accepts, probing
// known shapes in order: already-encodable values pass through, errors and
// Stringers become their text, containers recurse, and anything left falls
// back to fmt.Sprint.
func sanitize(v any) any {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err == nil {
		return v
	}

	switch t := v.(type) {
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = sanitize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, sanitize(rv.Index(i).Interface()))
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return sanitize(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}
