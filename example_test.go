package hookdi_test

import (
	"context"
	"fmt"

	"github.com/junioryono/hookdi"
)

type Config struct {
	DSN string
}

type Database struct {
	Config *Config
}

func (d *Database) OnInit() error {
	fmt.Println("connect", d.Config.DSN)
	return nil
}

func (d *Database) OnDestroy() error {
	fmt.Println("disconnect", d.Config.DSN)
	return nil
}

func NewDatabase(cfg *Config) *Database {
	return &Database{Config: cfg}
}

type UserService struct {
	DB *Database `inject:""`
}

func Example() {
	inj, err := hookdi.New(hookdi.WithProviders(
		hookdi.Value(hookdi.TypeOf[*Config](), &Config{DSN: "postgres://localhost"}),
		hookdi.Factory(NewDatabase, hookdi.WithScope(hookdi.Singleton)),
		hookdi.Class[UserService](),
	))
	if err != nil {
		panic(err)
	}

	svc := hookdi.MustResolve[*UserService](inj)
	fmt.Println(svc.DB.Config.DSN)

	if _, err := inj.Destroy(); err != nil {
		panic(err)
	}

	// Output:
	// connect postgres://localhost
	// postgres://localhost
	// disconnect postgres://localhost
}

func ExampleOptional() {
	inj, _ := hookdi.New()
	defer inj.Destroy()

	v, err := inj.Get(hookdi.TypeOf[*Config](), hookdi.Optional(&Config{DSN: "fallback"}))
	fmt.Println(v.(*Config).DSN, err)

	// Output:
	// fallback <nil>
}

func ExampleNewToken() {
	port := hookdi.NewToken("port", hookdi.WithDefaultProvider(hookdi.Factory(func() int { return 8080 })))

	inj, _ := hookdi.New()
	defer inj.Destroy()

	v, _ := hookdi.ResolveToken[int](inj, port)
	fmt.Println(v)

	// Output:
	// 8080
}

func ExampleTransform() {
	inj, _ := hookdi.New(hookdi.WithProviders(hookdi.Value("name", "world")))
	defer inj.Destroy()

	v, _ := inj.Get("name",
		hookdi.Transform(func(s string) string { return "hello " + s }),
		hookdi.Transform(func(s string) string { return s + "!" }),
	)
	fmt.Println(v)

	// Output:
	// hello world!
}

func ExampleInjector_GetContext() {
	inj, _ := hookdi.New(hookdi.WithProviders(
		hookdi.AsyncFactory(func() *Config { return &Config{DSN: "async"} }),
	))
	defer inj.Destroy()

	v, err := inj.GetContext(context.Background(), hookdi.TypeOf[*Config]())
	fmt.Println(v.(*Config).DSN, err)

	// Output:
	// async <nil>
}

func ExampleEnhance() {
	inj, _ := hookdi.New()
	defer inj.Destroy()

	logCall := hookdi.InterceptorFunc(func(ctx *hookdi.ExecutionContext, next hookdi.Handler) (any, error) {
		fmt.Println("calling", ctx.Method)
		return next(ctx.Args...)
	})

	add, _ := hookdi.Enhance(inj, nil, "Add", func(args ...any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	}, logCall)

	v, _ := add(2, 3)
	fmt.Println(v)

	// Output:
	// calling Add
	// 5
}
