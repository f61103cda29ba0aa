package transportutil

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// Source of a request struct field, set by the `request:"name,source,required|optional"` tag.
// Untagged fields come from the json body. A struct is decoded either from
// the body or from url parts, url params and headers, never from both.
type source string

const (
	fromURLPart  source = "urlPart"
	fromURLParam source = "urlParam"
	fromHeader   source = "header"
	fromBody     source = "body"
)

type fieldTag struct {
	name     string
	source   source
	required bool
}

func parseFieldTag(rf reflect.StructField) (fieldTag, error) {
	raw, ok := rf.Tag.Lookup("request")
	if !ok {
		return fieldTag{source: fromBody}, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return fieldTag{}, fmt.Errorf("bad request tag %q of %s", raw, rf.Name)
	}

	ft := fieldTag{
		name:   parts[0],
		source: source(parts[1]),
	}
	if ft.name == "" {
		ft.name = strings.ToLower(rf.Name)
	}

	switch ft.source {
	case fromURLPart, fromURLParam, fromHeader:
	default:
		return fieldTag{}, fmt.Errorf("bad source %q of %s", parts[1], rf.Name)
	}

	switch parts[2] {
	case "", "required":
		ft.required = true
	case "optional":
	default:
		return fieldTag{}, fmt.Errorf("bad requirement %q of %s", parts[2], rf.Name)
	}

	return ft, nil
}

type taggedField struct {
	tag fieldTag
	val reflect.Value
}

// collectFields flattens embedded structs.
func collectFields(sv reflect.Value) ([]taggedField, error) {
	var ret []taggedField
	for i := 0; i < sv.NumField(); i++ {
		rf := sv.Type().Field(i)
		if rf.Anonymous {
			embedded, err := collectFields(sv.Field(i))
			if err != nil {
				return nil, err
			}
			ret = append(ret, embedded...)
			continue
		}

		tag, err := parseFieldTag(rf)
		if err != nil {
			return nil, err
		}
		ret = append(ret, taggedField{tag: tag, val: sv.Field(i)})
	}

	return ret, nil
}

func decodeRequestField(f reflect.Value, r *http.Request) error {
	if f.Type().ConvertibleTo(reflect.TypeOf([]byte(nil))) {
		return readRawBody(f, r)
	}

	if f.Kind() != reflect.Ptr || f.Type().Elem().Kind() != reflect.Struct {
		return fmt.Errorf("invalid arg type %s, pointer to struct expected", f.Type())
	}

	ptr := reflect.New(f.Type().Elem())
	f.Set(ptr)

	fields, err := collectFields(ptr.Elem())
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	bodyFields := 0
	for _, tf := range fields {
		if tf.tag.source == fromBody {
			bodyFields++
		}
	}

	switch bodyFields {
	case 0:
		return decodeTaggedFields(fields, r)
	case len(fields):
		return decodeJSONBody(ptr, r)
	}
	return fmt.Errorf("%s mixes body fields with url or header fields", f.Type().Elem())
}

func readRawBody(f reflect.Value, r *http.Request) error {
	if r.Body == nil {
		return errors.New("no request body")
	}
	defer r.Body.Close()

	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read request body")
	}
	f.SetBytes(body)
	return nil
}

func lookupValue(r *http.Request, tag fieldTag) string {
	switch tag.source {
	case fromURLPart:
		return mux.Vars(r)[tag.name]
	case fromURLParam:
		return r.URL.Query().Get(tag.name)
	case fromHeader:
		return r.Header.Get(tag.name)
	}
	return ""
}

func decodeTaggedFields(fields []taggedField, r *http.Request) error {
	for _, tf := range fields {
		s := lookupValue(r, tf.tag)
		if s == "" {
			if tf.tag.required {
				return fmt.Errorf("no required %s %s", tf.tag.source, tf.tag.name)
			}
			continue
		}

		if err := setFromString(tf.val, s); err != nil {
			return errors.Wrapf(err, "bad %s %s", tf.tag.source, tf.tag.name)
		}
	}

	return nil
}

func setFromString(v reflect.Value, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("%q isn't a positive number", s)
		}
		v.SetUint(n)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("%q isn't a number", s)
		}
		v.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("%q isn't a boolean", s)
		}
		v.SetBool(b)
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}

	return nil
}

func decodeJSONBody(ptr reflect.Value, r *http.Request) error {
	if r.Body == nil {
		return nil
	}

	err := json.NewDecoder(r.Body).Decode(ptr.Interface())
	if err == io.EOF {
		return nil // validation reports missing fields
	}
	return errors.Wrap(err, "invalid json body")
}
