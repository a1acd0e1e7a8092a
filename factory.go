package hookdi

import (
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/junioryono/hookdi/internal/reflection"
	"github.com/junioryono/hookdi/wait"
)

// factory produces the value of a definition for a session.
type factory interface {
	Create(s *Session) (any, error)
	Arguments() []Argument
}

type valueFactory struct {
	value any
}

func (f valueFactory) Create(*Session) (any, error) { return f.value, nil }

func (f valueFactory) Arguments() []Argument { return nil }

type funcFactory struct {
	token Token
	info  *reflection.FuncInfo
	args  []Argument
	async bool
}

func (f *funcFactory) Arguments() []Argument { return f.args }

func (f *funcFactory) Create(s *Session) (any, error) {
	vals, err := resolveArguments(s, f.args)
	return wait.Then(vals, err, func(v any) (any, error) {
		args := v.([]any)
		if f.async {
			return s.injector.goAsync(func() (any, error) {
				return f.call(args)
			}), nil
		}
		return f.call(args)
	})
}

func (f *funcFactory) call(args []any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = FactoryPanicError{Token: f.token, Panic: r, Stack: debug.Stack()}
		}
	}()
	return f.info.Call(args)
}

type classFactory struct {
	token  Token
	typ    reflect.Type
	fields []fieldArgument
}

func (f *classFactory) Arguments() []Argument {
	args := make([]Argument, len(f.fields))
	for i, field := range f.fields {
		args[i] = field.arg
	}
	return args
}

func (f *classFactory) Create(s *Session) (any, error) {
	ptr := reflect.New(f.typ)
	s.instance.setValue(ptr.Interface())

	vals, err := resolveArguments(s, f.Arguments())
	return wait.Then(vals, err, func(v any) (any, error) {
		for i, val := range v.([]any) {
			if err := reflection.SetField(ptr, f.fields[i].name, val); err != nil {
				return nil, ConfigurationError{Token: f.token, Cause: err}
			}
		}
		return ptr.Interface(), nil
	})
}

// resolveArguments resolves args in order as dependencies of s.
func resolveArguments(s *Session, args []Argument) (any, error) {
	if len(args) == 0 {
		return []any{}, nil
	}
	return wait.Sequence(args, func(_ int, arg Argument) (any, error) {
		return s.injector.resolveArgument(arg, s)
	})
}

// newFactory builds the factory of p using the injector's analyzer.
func (inj *Injector) newFactory(p Provider) (factory, error) {
	switch p.kind {
	case valueProvider:
		return valueFactory{value: p.value}, nil

	case factoryProvider, asyncFactoryProvider:
		info, err := inj.analyzer.AnalyzeFunc(p.fn)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFactory, err)
		}

		var args []Argument
		if p.args == nil {
			args = make([]Argument, len(info.Params))
			for i, t := range info.Params {
				args[i] = Argument{Token: t}
			}
		} else if args = p.args.Arguments(); len(args) != len(info.Params) {
			return nil, fmt.Errorf("%w: %d arguments for %d parameters", ErrInvalidFactory, len(args), len(info.Params))
		}

		return &funcFactory{
			token: p.token,
			info:  info,
			args:  withMetadata(args, p.token, Parameter, nil),
			async: p.kind == asyncFactoryProvider,
		}, nil

	case classProvider:
		fields, err := inj.classFields(p)
		if err != nil {
			return nil, err
		}
		return &classFactory{token: p.token, typ: p.classType, fields: fields}, nil
	}

	return nil, fmt.Errorf("%w: unsupported provider kind %s", ErrInvalidProvider, p.kind)
}

func (inj *Injector) classFields(p Provider) ([]fieldArgument, error) {
	tagged, err := inj.analyzer.InjectableFields(p.classType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProvider, err)
	}

	given := p.fields
	if p.args != nil {
		for _, arg := range p.args.Arguments() {
			if arg.Metadata.Key == "" {
				return nil, fmt.Errorf("%w: class argument for %s names no field", ErrInvalidProvider, TokenName(arg.Token))
			}
			given = append(given, fieldArgument{name: arg.Metadata.Key, arg: arg})
		}
	}

	explicit := make(map[string]bool, len(given))
	for _, f := range given {
		explicit[f.name] = true
	}

	var fields []fieldArgument
	for _, f := range tagged {
		if explicit[f.Name] {
			continue
		}
		arg := Argument{Token: f.Type}
		if f.Key != "" {
			arg.Hooks = append(arg.Hooks, Named(f.Key))
		}
		if f.Optional {
			arg.Hooks = append([]Hook{Optional()}, arg.Hooks...)
		}
		fields = append(fields, fieldArgument{name: f.Name, arg: arg})
	}
	fields = append(fields, given...)

	for i := range fields {
		fields[i].arg.Metadata.Kind = Property
		fields[i].arg.Metadata.Key = fields[i].name
		fields[i].arg.Metadata.Target = p.token
	}
	return fields, nil
}

func withMetadata(args []Argument, target Token, kind InjectionKind, annotations map[any]any) []Argument {
	out := make([]Argument, len(args))
	for i, arg := range args {
		arg.Metadata.Kind = kind
		arg.Metadata.Index = i
		if arg.Metadata.Target == nil {
			arg.Metadata.Target = target
		}
		if arg.Metadata.Annotations == nil {
			arg.Metadata.Annotations = annotations
		}
		out[i] = arg
	}
	return out
}
