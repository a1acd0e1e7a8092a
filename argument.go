package hookdi

// InjectionKind tells where an injection happens.
type InjectionKind int

const (
	// Standalone is a direct Get call.
	Standalone InjectionKind = iota
	// Parameter is a constructor or factory argument.
	Parameter
	// Property is a struct field filled after allocation.
	Property
	// Method is a per-call injection into a method invocation.
	Method
)

func (k InjectionKind) String() string {
	switch k {
	case Standalone:
		return "standalone"
	case Parameter:
		return "parameter"
	case Property:
		return "property"
	case Method:
		return "method"
	default:
		return "unknown"
	}
}

// Metadata records where and for whom an injection happens.
type Metadata struct {
	Kind        InjectionKind
	Target      Token // token of the requesting provider, if any
	Index       int   // parameter index for Parameter and Method kinds
	Key         string
	Static      bool
	Annotations map[any]any
}

// Argument describes one injection site: what is requested and through which
// hooks. Arguments are treated as immutable once built.
type Argument struct {
	Token    Token
	Hooks    []Hook
	Metadata Metadata
}

// Inject builds a standalone Argument for token.
func Inject(token Token, hooks ...Hook) Argument {
	return Argument{Token: token, Hooks: hooks}
}

// ArgumentProvider supplies the injection sites of a provider. Reflection
// based analysis and hand written descriptors both satisfy it.
type ArgumentProvider interface {
	Arguments() []Argument
}

// Arguments is a static ArgumentProvider.
type Arguments []Argument

func (a Arguments) Arguments() []Argument {
	return a
}
