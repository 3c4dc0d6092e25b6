package endpoint

import (
	"bytes"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

var defaultFieldLimit int = 16 * 1024 // 16KB

// Unmarshal populates dst (must be a non-nil pointer) from the request.
//
// Supported structtags:
//   - `path:"name[,flag]"`: r.PathValue(name)
//   - `query:"name[,flag]"`: r.URL.Query()
//   - `header:"name[,flag]"`: r.Header
//   - `body:"[name][,flag]"`: the whole request body
//   - `path:"-"` (or any source) to ignore the field entirely
//   - `maxLength:"n"` to set the maximum byte length for a field value
//
// Flags:
//   - []byte decoding: base64 | base64url
//   - json decoding: json (the default for non-string, non-[]byte body fields)
//
// Notes:
//   - If multiple source tags are present on the same field, precedence is:
//     path, query, header, body.
//   - Untagged non-struct fields are read from path, then query, under the
//     lower-cased field name. Untagged struct fields are decoded recursively.
//   - If no data is present for a field, it is left unchanged.
//   - At most one field may read the body.
//
// Length constraints:
//   - `maxLength:"n"` bounds a field value; longer values yield 400. Without
//     the tag a 16KB limit applies. `maxLength:"0"` or `maxLength:""` removes
//     the limit.
//   - A body that hits an http.MaxBytesReader limit yields 413.
func Unmarshal(r *http.Request, dst any) error {
	if r == nil {
		return newEndpointError(http.StatusInternalServerError, "", errors.New("endpoint: decode: nil request"))
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return newEndpointError(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must be a non-nil pointer"))
	}

	// Support *P where P may be a struct or pointer-to-struct.
	root := v.Elem()
	if root.Kind() == reflect.Pointer {
		if root.IsNil() {
			root.Set(reflect.New(root.Type().Elem()))
		}
		root = root.Elem()
	}
	if root.Kind() != reflect.Struct {
		return newEndpointError(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must point to a struct (or pointer to struct)"))
	}

	q := url.Values{}
	if r.URL != nil {
		q = r.URL.Query()
	}
	d := &decoder{r: r, query: q}
	return d.unmarshalStruct(root)
}

type decoder struct {
	r     *http.Request
	query url.Values

	bodyField string
}

// sourceOrder is the lookup precedence for tagged fields.
var sourceOrder = []string{"path", "query", "header", "body"}

func (d *decoder) fetcher(source, encodingFlag string) func(name string) ([][]byte, bool, error) {
	switch source {
	case "path":
		return func(name string) ([][]byte, bool, error) {
			v := d.r.PathValue(name)
			if v == "" {
				return nil, false, nil
			}
			return [][]byte{[]byte(v)}, true, nil
		}
	case "query":
		return func(name string) ([][]byte, bool, error) {
			return toBytes(d.query[name])
		}
	case "header":
		return func(name string) ([][]byte, bool, error) {
			// Access the map directly to distinguish present-but-empty from missing.
			return toBytes(d.r.Header[http.CanonicalHeaderKey(name)])
		}
	default:
		return fetchRequestBody(d.r, encodingFlag)
	}
}

func toBytes(values []string) ([][]byte, bool, error) {
	if len(values) == 0 {
		return nil, false, nil
	}
	out := make([][]byte, len(values))
	for i, s := range values {
		out[i] = []byte(s)
	}
	return out, true, nil
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

func (d *decoder) unmarshalStruct(structVal reflect.Value) error {
	t := structVal.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		fv := structVal.Field(i)
		defaultName := strings.ToLower(sf.Name)

		tags := make(map[string]sourceTag, len(sourceOrder))
		ignored := false
		for _, source := range sourceOrder {
			tag, has, err := parseSourceTag(sf, source, defaultName)
			if err != nil {
				return newEndpointError(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: field %s: %w", sf.Name, err))
			}
			if !has {
				continue
			}
			if tag.Name == "-" {
				ignored = true
				break
			}
			tags[source] = tag
		}
		if ignored {
			continue
		}

		if _, ok := tags["body"]; ok {
			if d.bodyField != "" {
				return newEndpointError(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: multiple body fields: %s and %s", d.bodyField, sf.Name))
			}
			d.bodyField = sf.Name
		}

		if len(tags) == 0 {
			elem := sf.Type
			if elem.Kind() == reflect.Pointer {
				elem = elem.Elem()
			}
			if elem.Kind() == reflect.Struct && !reflect.PointerTo(elem).Implements(textUnmarshalerType) {
				if fv.Kind() == reflect.Pointer {
					if fv.IsNil() {
						fv.Set(reflect.New(elem))
					}
					fv = fv.Elem()
				}
				if err := d.unmarshalStruct(fv); err != nil {
					return err
				}
				continue
			}
			tags["path"] = sourceTag{Source: "path", Name: defaultName}
			tags["query"] = sourceTag{Source: "query", Name: defaultName}
		}

		limit, err := fieldLengthLimit(sf)
		if err != nil {
			return newEndpointError(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: field %s: %w", sf.Name, err))
		}

		for _, source := range sourceOrder {
			tag, ok := tags[source]
			if !ok {
				continue
			}
			tag.MaxLength = limit
			if source == "body" && tag.Encoding == "" && !isStringOrBytes(sf.Type) {
				tag.Encoding = "json"
			}
			set, err := setFieldFromSource(fv, tag, d.fetcher(source, tag.Encoding), sf.Name)
			if err != nil {
				return err
			}
			if set {
				break
			}
		}
	}
	return nil
}

func isStringOrBytes(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.String || (t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8)
}

func requestBodyIsJSON(r *http.Request) bool {
	mt := requestBodyMediaType(r)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func requestBodyMediaType(r *http.Request) string {
	ct := strings.TrimSpace(r.Header.Get("Content-Type"))
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		// If malformed, return the raw (lowercased) content-type.
		return strings.ToLower(ct)
	}
	return strings.ToLower(mt)
}

func fetchRequestBody(r *http.Request, encodingFlag string) func(name string) ([][]byte, bool, error) {
	return func(_ string) ([][]byte, bool, error) {
		if r.Body == nil || r.Body == http.NoBody {
			return nil, false, nil
		}

		// JSON decoding requires a JSON content type.
		if encodingFlag == "json" && !requestBodyIsJSON(r) {
			mt := requestBodyMediaType(r)
			if mt == "" {
				mt = "(missing)"
			}
			return nil, false, newEndpointError(http.StatusUnsupportedMediaType, "", fmt.Errorf("endpoint: decode: body: unsupported media type %s", mt))
		}

		b, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, false, newEndpointError(http.StatusRequestEntityTooLarge, "", fmt.Errorf("endpoint: decode: body exceeds %d bytes", tooLarge.Limit))
			}
			return nil, false, newEndpointError(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: body: %w", err))
		}
		if len(b) == 0 {
			return nil, false, nil
		}
		return [][]byte{b}, true, nil
	}
}

type sourceTag struct {
	Source    string
	Name      string
	Encoding  string
	MaxLength int
}

func fieldLengthLimit(sf reflect.StructField) (int, error) {
	val, has := sf.Tag.Lookup("maxLength")
	if !has {
		return defaultFieldLimit, nil
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("maxLength: invalid integer %q", val)
	}
	if n < 0 {
		return 0, errors.New("maxLength: must be >= 0")
	}
	return n, nil
}

func parseSourceTag(sf reflect.StructField, tagKey string, defaultName string) (cfg sourceTag, has bool, err error) {
	val, has := sf.Tag.Lookup(tagKey)
	if !has {
		return sourceTag{}, false, nil
	}

	parts := strings.Split(val, ",")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		name = defaultName
	}

	cfg = sourceTag{Source: tagKey, Name: name, MaxLength: defaultFieldLimit}
	for _, p := range parts[1:] {
		flag := strings.ToLower(strings.TrimSpace(p))
		switch flag {
		case "":
			continue
		case "base64", "base64url", "json":
			if cfg.Encoding != "" {
				return sourceTag{}, false, errors.New("multiple encoding flags")
			}
			cfg.Encoding = flag
		default:
			return sourceTag{}, false, fmt.Errorf("unknown %s tag flag %q", tagKey, flag)
		}
	}
	return cfg, true, nil
}

func setFieldFromSource(field reflect.Value, tag sourceTag, fetch func(name string) ([][]byte, bool, error), fieldName string) (bool, error) {
	raw, ok, err := fetch(tag.Name)
	if err != nil || !ok {
		return false, err
	}

	for _, val := range raw {
		if tag.MaxLength > 0 && len(val) > tag.MaxLength {
			return false, newEndpointError(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: %s %q -> %s: value exceeds max length %d", tag.Source, tag.Name, fieldName, tag.MaxLength))
		}
	}

	if err := setFieldFromValues(field, raw, tag.Encoding); err != nil {
		return false, newEndpointError(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: %s %q -> %s: %w", tag.Source, tag.Name, fieldName, err))
	}
	return true, nil
}

func setFieldFromValues(v reflect.Value, values [][]byte, encodingFlag string) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}

	// Repeated values fill slice fields, one element each. JSON and []byte
	// fields take the first value whole.
	isByteSlice := v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
	if v.Kind() == reflect.Slice && !isByteSlice && encodingFlag != "json" {
		slice := reflect.MakeSlice(v.Type(), 0, len(values))
		for _, val := range values {
			elem := reflect.New(v.Type().Elem()).Elem()
			if err := setFieldFromBytesWithEncoding(elem, val, encodingFlag); err != nil {
				return err
			}
			slice = reflect.Append(slice, elem)
		}
		v.Set(slice)
		return nil
	}
	return setFieldFromBytesWithEncoding(v, values[0], encodingFlag)
}

func setFieldFromBytesWithEncoding(v reflect.Value, b []byte, encodingFlag string) error {
	if !v.CanSet() || !v.CanAddr() {
		return errors.New("field is not settable")
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return setFieldFromBytesWithEncoding(v.Elem(), b, encodingFlag)
	}

	switch encodingFlag {
	case "json":
		return json.NewDecoder(bytes.NewReader(b)).Decode(v.Addr().Interface())
	case "base64", "base64url":
		if v.Kind() != reflect.Slice || v.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("encoding %q not supported for type %s", encodingFlag, v.Type())
		}
		enc := base64.StdEncoding
		if encodingFlag == "base64url" {
			enc = base64.RawURLEncoding
		}
		src := bytes.TrimSpace(b)
		out := make([]byte, enc.DecodedLen(len(src)))
		n, err := enc.Decode(out, src)
		if err != nil {
			return err
		}
		v.SetBytes(out[:n])
		return nil
	}

	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
		v.SetBytes(bytes.Clone(b))
		return nil
	}
	return setFieldFromBytes(v, b)
}

func setFieldFromBytes(v reflect.Value, b []byte) error {
	// Prefer the pointer receiver, as most custom types use it.
	if u, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return u.UnmarshalText(b)
	}

	s := string(b)
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
		return nil
	case reflect.Bool:
		bb, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(bb)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
		return nil
	}
	return fmt.Errorf("unsupported kind %s", v.Kind())
}
