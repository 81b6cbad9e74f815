package decode

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Options customises DecodeMap.
type Options struct {
	// Weak decoding (default true): "123" -> int, 1.0 -> int64, 5 -> "5".
	WeaklyTypedInput bool
	// TagName defaults to "json".
	TagName string
}

func DefaultOptions() Options {
	return Options{
		WeaklyTypedInput: true,
		TagName:          "json",
	}
}

// DecodeMap decodes a generic JSON object into T using its json tags.
// T is usually a wire record such as inbound.Record.
func DecodeMap[T any](m map[string]any, opts ...Options) (*T, error) {
	if m == nil {
		return nil, fmt.Errorf("map is nil")
	}

	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
		if cfg.TagName == "" {
			cfg.TagName = "json"
		}
	}

	var out T
	decCfg := &mapstructure.DecoderConfig{
		TagName:          cfg.TagName,
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			floatToIntHook(),
			jsonArrayStringHook(),
			sliceAnyToSliceStringHook(),
		),
	}

	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode map: %w", err)
	}
	return &out, nil
}

var stringSliceType = reflect.TypeOf([]string(nil))

// floatToIntHook turns JSON numbers (float64) into the integer kinds.
func floatToIntHook() mapstructure.DecodeHookFuncKind {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

// jsonArrayStringHook accepts a JSON array that arrived as a string,
// e.g. "[\"CS101\",\"CS202\"]", for []string targets.
func jsonArrayStringHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != stringSliceType {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if !strings.HasPrefix(s, "[") {
			return data, nil
		}
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return data, nil
		}
		return arr, nil
	}
}

// sliceAnyToSliceStringHook converts []any to []string, JSON encoding
// elements that aren't strings. null becomes "".
func sliceAnyToSliceStringHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != stringSliceType {
			return data, nil
		}
		src, ok := data.([]any)
		if !ok {
			return data, nil
		}
		out := make([]string, 0, len(src))
		for _, it := range src {
			switch v := it.(type) {
			case nil:
				out = append(out, "")
			case string:
				out = append(out, v)
			case json.Number:
				out = append(out, v.String())
			default:
				b, _ := json.Marshal(v)
				out = append(out, string(b))
			}
		}
		return out, nil
	}
}
