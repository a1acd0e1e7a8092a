package hookdi

import (
	"fmt"
	"sync/atomic"
)

var contextIDs atomic.Uint64

// Context is the cache key of a provider definition's instance map. Two
// resolutions sharing a Context observe the same instance. Contexts are
// compared by identity.
type Context struct {
	id   uint64
	name string
}

// Static is the context used when nothing asks for isolation.
var Static = NewContext("static")

// NewContext mints a fresh context.
func NewContext(name string) *Context {
	return &Context{id: contextIDs.Add(1), name: name}
}

// ID returns the process-unique id of the context.
func (c *Context) ID() uint64 {
	return c.id
}

// Name returns the debug name of the context.
func (c *Context) Name() string {
	return c.name
}

func (c *Context) String() string {
	if c == nil {
		return "Context(<nil>)"
	}
	return fmt.Sprintf("Context(%s#%d)", c.name, c.id)
}
