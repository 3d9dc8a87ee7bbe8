package mcp

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// bindArguments decodes MCP tool arguments into target using the json tags.
// Some clients send every parameter as a string, so "true", "4" and
// JSON-encoded arrays are coerced to the field type.
func bindArguments[T any](args map[string]interface{}, target *T) error {
	jsonStringHook := func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || (t.Kind() != reflect.Slice && t.Kind() != reflect.Map) {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if !strings.HasPrefix(raw, "[") && !strings.HasPrefix(raw, "{") {
			return data, nil
		}
		ptr := reflect.New(t)
		if err := json.Unmarshal([]byte(raw), ptr.Interface()); err != nil {
			return data, nil
		}
		return ptr.Elem().Interface(), nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			jsonStringHook,
			mapstructure.StringToSliceHookFunc(","),
		),
		Result:  target,
		TagName: "json",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(args)
}
