package jsonrpc

import (
	"context"
	"reflect"
	"strings"
)

// receiverMethod holds reflection data for a method registered through
// RegisterReceiver.
type receiverMethod struct {
	receiver    reflect.Value
	method      reflect.Method
	paramType   reflect.Type
	paramNames  []string // JSON tag names for named params
	paramFields []int    // field indices for positional params
	methodName  string
}

// ServeRPC binds params to the method's params struct and calls it.
//
// Array params map to struct fields in declaration order. Object params map
// by json tag, and every field must be present.
func (m *receiverMethod) ServeRPC(ctx context.Context, params Value, _ Value) (any, error) {
	param := reflect.New(m.paramType)

	switch {
	case params.IsZero() || params.IsNull():
		if len(m.paramFields) != 0 {
			return nil, Fail(CodeInvalidParams, "missing params")
		}
	case params.isArray():
		var list []Value
		if err := params.Decode(&list); err != nil {
			return nil, Fail(CodeInvalidParams, "invalid params")
		}
		if len(list) != len(m.paramFields) {
			return nil, Fail(CodeInvalidParams, "invalid number of params")
		}
		for i, elem := range list {
			field := param.Elem().Field(m.paramFields[i])
			if err := elem.Decode(field.Addr().Interface()); err != nil {
				return nil, Fail(CodeInvalidParams, "invalid params")
			}
		}
	default:
		if err := params.Decode(param.Interface()); err != nil {
			return nil, Fail(CodeInvalidParams, "invalid params")
		}
		var present map[string]Value
		if err := params.Decode(&present); err != nil {
			return nil, Fail(CodeInvalidParams, "invalid params")
		}
		for _, name := range m.paramNames {
			if _, ok := present[name]; !ok {
				return nil, Fail(CodeInvalidParams, "missing param: "+name)
			}
		}
	}

	results := m.method.Func.Call([]reflect.Value{m.receiver, reflect.ValueOf(ctx), param.Elem()})

	var err error
	if !results[1].IsNil() {
		err = results[1].Interface().(error)
	}
	return results[0].Interface(), err
}

// RegisterReceiver registers every exported method of receiver that has the
// signature
//
//	func(ctx context.Context, params P) (R, error)
//
// where P is a struct. Method names are prefixed with namespace and a dot,
// unless namespace is empty. A blank field `_ struct{}` in P tagged
// `jsonrpc:"name"` overrides the method name. Methods with other signatures are skipped.
//
// Registration stops at the first error; methods registered before it stay
// registered.
func (r *Registry) RegisterReceiver(namespace string, receiver any) error {
	if receiver == nil {
		return ErrInvalidRegistration
	}
	val := reflect.ValueOf(receiver)
	typ := val.Type()

	for i := 0; i < val.NumMethod(); i++ {
		method := typ.Method(i)
		if !method.IsExported() {
			continue
		}

		handler := parseMethod(val, method)
		if handler == nil {
			continue
		}

		name := handler.methodName
		if namespace != "" {
			name = namespace + "." + name
		}
		if err := r.Register(name, handler); err != nil {
			return err
		}
	}
	return nil
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// parseMethod extracts method signature information via reflection.
// It returns nil for methods without a valid signature.
func parseMethod(receiver reflect.Value, method reflect.Method) *receiverMethod {
	ft := method.Func.Type()

	if ft.NumIn() != 3 || ft.In(1) != contextType {
		return nil
	}
	if ft.NumOut() != 2 || ft.Out(1) != errorType {
		return nil
	}
	paramType := ft.In(2)
	if paramType.Kind() != reflect.Struct {
		return nil
	}

	rpc := &receiverMethod{
		receiver:   receiver,
		method:     method,
		paramType:  paramType,
		methodName: method.Name,
	}

	for i := 0; i < paramType.NumField(); i++ {
		field := paramType.Field(i)
		if field.Name == "_" {
			if tag := field.Tag.Get("jsonrpc"); tag != "" {
				rpc.methodName = tag
			}
			continue
		}
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if jsonTag := field.Tag.Get("json"); jsonTag != "" {
			name = strings.Split(jsonTag, ",")[0]
			if name == "-" {
				continue
			}
			if name == "" {
				name = field.Name
			}
		}
		rpc.paramNames = append(rpc.paramNames, name)
		rpc.paramFields = append(rpc.paramFields, i)
	}

	return rpc
}
