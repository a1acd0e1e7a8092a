// Package reflection analyzes factory functions and injectable struct types.
package reflection

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/junioryono/hookdi/wait"
)

var (
	errType    = reflect.TypeOf((*error)(nil)).Elem()
	futureType = reflect.TypeOf((*wait.Future)(nil))

	// ErrNotFunc is returned when a factory is not a function.
	ErrNotFunc = errors.New("factory must be a function")
	// ErrNoResult is returned when a factory returns nothing usable.
	ErrNoResult = errors.New("factory must return a value")
	// ErrVariadic is returned for variadic factories.
	ErrVariadic = errors.New("variadic factories are not supported")
	// ErrNotStruct is returned when a class type is not a struct.
	ErrNotStruct = errors.New("class type must be a struct")
)

// Analyzer performs reflection-based analysis of factories and struct types.
// It caches analysis results.
type Analyzer struct {
	mu     sync.RWMutex
	funcs  map[reflect.Type]*FuncInfo
	fields map[reflect.Type][]FieldInfo
}

// FuncInfo describes a factory function.
type FuncInfo struct {
	Type           reflect.Type
	Value          reflect.Value
	Params         []reflect.Type
	Result         reflect.Type // nil when the factory only returns a future
	ReturnsError   bool
	ReturnsFuture  bool
	HasResultValue bool
	NoResult       bool // func(...) or func(...) error
}

// FieldInfo describes an injectable struct field.
type FieldInfo struct {
	Name     string
	Index    []int
	Type     reflect.Type
	Optional bool
	Key      string // from name:"key"
}

// TagInfo contains parsed struct tag information.
type TagInfo struct {
	Inject   bool
	Optional bool
	Name     string
}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{
		funcs:  make(map[reflect.Type]*FuncInfo),
		fields: make(map[reflect.Type][]FieldInfo),
	}
}

// AnalyzeFunc analyzes a factory function. Supported shapes are
// func(...) T, func(...) (T, error), func(...) *wait.Future and
// func(...) (*wait.Future, error).
func (a *Analyzer) AnalyzeFunc(fn any) (*FuncInfo, error) {
	info, err := a.AnalyzeCallable(fn)
	if err != nil {
		return nil, err
	}
	if info.NoResult {
		return nil, fmt.Errorf("%w: %v", ErrNoResult, info.Type)
	}
	return info, nil
}

// AnalyzeCallable is like AnalyzeFunc but also accepts functions returning
// nothing or only an error.
func (a *Analyzer) AnalyzeCallable(fn any) (*FuncInfo, error) {
	if fn == nil {
		return nil, ErrNotFunc
	}

	val := reflect.ValueOf(fn)
	typ := val.Type()
	if typ.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w, got %v", ErrNotFunc, typ)
	}
	if val.IsNil() {
		return nil, ErrNotFunc
	}
	if typ.IsVariadic() {
		return nil, ErrVariadic
	}

	// Closures share code pointers, so only the signature is cached.
	a.mu.RLock()
	cached, ok := a.funcs[typ]
	a.mu.RUnlock()
	if ok {
		info := *cached
		info.Value = val
		return &info, nil
	}

	info := &FuncInfo{
		Type:   typ,
		Value:  val,
		Params: make([]reflect.Type, typ.NumIn()),
	}
	for i := 0; i < typ.NumIn(); i++ {
		info.Params[i] = typ.In(i)
	}

	switch typ.NumOut() {
	case 0:
		info.NoResult = true
	case 1:
		if typ.Out(0) == errType {
			info.NoResult = true
			info.ReturnsError = true
		}
	case 2:
		if typ.Out(1) != errType {
			return nil, fmt.Errorf("second return value of %v must be error", typ)
		}
		info.ReturnsError = true
	default:
		return nil, fmt.Errorf("%w: %v", ErrNoResult, typ)
	}

	switch {
	case info.NoResult:
	case typ.Out(0) == futureType:
		info.ReturnsFuture = true
	default:
		info.Result = typ.Out(0)
		info.HasResultValue = true
	}

	a.mu.Lock()
	a.funcs[typ] = info
	a.mu.Unlock()

	return info, nil
}

// Call invokes the analyzed function with args. Nil or mismatched arguments
// are replaced by the zero value of the parameter type. The returned value
// may be a *wait.Future.
func (info *FuncInfo) Call(args []any) (any, error) {
	if len(args) != len(info.Params) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(info.Params), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = ValueFor(info.Params[i], arg)
	}

	out := info.Value.Call(in)
	if info.ReturnsError {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return nil, errv.Interface().(error)
		}
	}
	if info.NoResult {
		return nil, nil
	}

	if info.ReturnsFuture {
		if out[0].IsNil() {
			return nil, nil
		}
		return out[0].Interface().(*wait.Future), nil
	}
	return out[0].Interface(), nil
}

// ValueFor converts v to a reflect.Value assignable to t.
func ValueFor(t reflect.Type, v any) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t)
	}
	return reflect.Zero(t)
}

// InjectableFields lists the exported fields of struct type t tagged with
// `inject`. `inject:"optional"` marks the field optional and `name:"x"`
// selects a named provider.
func (a *Analyzer) InjectableFields(t reflect.Type) ([]FieldInfo, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w, got %v", ErrNotStruct, t)
	}

	a.mu.RLock()
	if cached, ok := a.fields[t]; ok {
		a.mu.RUnlock()
		return cached, nil
	}
	a.mu.RUnlock()

	var fields []FieldInfo
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		tag := ParseTag(f.Tag)
		if !tag.Inject {
			continue
		}

		fields = append(fields, FieldInfo{
			Name:     f.Name,
			Index:    f.Index,
			Type:     f.Type,
			Optional: tag.Optional,
			Key:      tag.Name,
		})
	}

	a.mu.Lock()
	a.fields[t] = fields
	a.mu.Unlock()

	return fields, nil
}

// ParseTag reads the inject and name tags of a field.
func ParseTag(tag reflect.StructTag) TagInfo {
	var info TagInfo

	if v, ok := tag.Lookup("inject"); ok {
		info.Inject = true
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "optional" {
				info.Optional = true
			}
		}
	}

	info.Name = tag.Get("name")
	return info
}

// SetField assigns v to the named field of the struct behind ptr.
func SetField(ptr reflect.Value, name string, v any) error {
	if ptr.Kind() != reflect.Pointer || ptr.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w, got %v", ErrNotStruct, ptr.Type())
	}

	field := ptr.Elem().FieldByName(name)
	if !field.IsValid() {
		return fmt.Errorf("field %s not found on %v", name, ptr.Type().Elem())
	}
	if !field.CanSet() {
		return fmt.Errorf("field %s on %v cannot be set", name, ptr.Type().Elem())
	}

	field.Set(ValueFor(field.Type(), v))
	return nil
}
