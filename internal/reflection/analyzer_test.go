package reflection_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/hookdi/internal/reflection"
	"github.com/junioryono/hookdi/wait"
)

// Test types
type Database struct {
	ConnectionString string
}

type Logger interface {
	Log(msg string)
}

type ConsoleLogger struct{}

func (c *ConsoleLogger) Log(msg string) {}

type UserService struct {
	DB     *Database
	Logger Logger
}

// Test constructors
func NewDatabase(connStr string) *Database {
	return &Database{ConnectionString: connStr}
}

func NewUserService(db *Database, logger Logger) *UserService {
	return &UserService{DB: db, Logger: logger}
}

func NewUserServiceWithError(db *Database) (*UserService, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	return &UserService{DB: db}, nil
}

func NewDatabaseAsync() *wait.Future {
	return wait.Resolved(&Database{ConnectionString: "async"})
}

// Injectable struct
type Handler struct {
	DB      *Database `inject:""`
	Logger  Logger    `inject:"optional"`
	Replica *Database `inject:"" name:"replica"`
	Plain   string
	private *Database `inject:""`
}

func TestAnalyzer_SimpleConstructor(t *testing.T) {
	analyzer := reflection.New()

	info, err := analyzer.AnalyzeFunc(NewDatabase)
	require.NoError(t, err, "Failed to analyze constructor")

	assert.Equal(t, []reflect.Type{reflect.TypeOf("")}, info.Params)
	assert.Equal(t, reflect.TypeOf((*Database)(nil)), info.Result)
	assert.True(t, info.HasResultValue)
	assert.False(t, info.ReturnsError)
	assert.False(t, info.ReturnsFuture)
}

func TestAnalyzer_ConstructorWithMultipleParams(t *testing.T) {
	analyzer := reflection.New()

	info, err := analyzer.AnalyzeFunc(NewUserService)
	require.NoError(t, err, "Failed to analyze constructor")

	require.Len(t, info.Params, 2, "Expected 2 parameters")
	assert.Equal(t, reflect.TypeOf((*Database)(nil)), info.Params[0], "Expected first parameter to be *Database")
	assert.Equal(t, reflect.TypeOf((*Logger)(nil)).Elem(), info.Params[1], "Expected second parameter to be Logger interface")
}

func TestAnalyzer_ConstructorWithError(t *testing.T) {
	analyzer := reflection.New()

	info, err := analyzer.AnalyzeFunc(NewUserServiceWithError)
	require.NoError(t, err, "Failed to analyze constructor")
	assert.True(t, info.ReturnsError, "Expected ReturnsError to be true")

	v, err := info.Call([]any{&Database{}})
	require.NoError(t, err)
	assert.IsType(t, &UserService{}, v)

	_, err = info.Call([]any{nil})
	assert.EqualError(t, err, "database is required")
}

func TestAnalyzer_FutureResult(t *testing.T) {
	analyzer := reflection.New()

	info, err := analyzer.AnalyzeFunc(NewDatabaseAsync)
	require.NoError(t, err)
	assert.True(t, info.ReturnsFuture)
	assert.False(t, info.HasResultValue)
	assert.Nil(t, info.Result)

	v, err := info.Call(nil)
	require.NoError(t, err)
	v, err = wait.Await(t.Context(), v, err)
	require.NoError(t, err)
	assert.Equal(t, "async", v.(*Database).ConnectionString)
}

func TestAnalyzer_InvalidFunctions(t *testing.T) {
	analyzer := reflection.New()

	tests := []struct {
		name string
		fn   any
		want error
	}{
		{"nil", nil, reflection.ErrNotFunc},
		{"not a function", 42, reflection.ErrNotFunc},
		{"nil function", (func() *Database)(nil), reflection.ErrNotFunc},
		{"variadic", func(...string) *Database { return nil }, reflection.ErrVariadic},
		{"no result", func() {}, reflection.ErrNoResult},
		{"only error", func() error { return nil }, reflection.ErrNoResult},
		{"too many results", func() (int, int, error) { return 0, 0, nil }, reflection.ErrNoResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := analyzer.AnalyzeFunc(tt.fn)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("second result not error", func(t *testing.T) {
		_, err := analyzer.AnalyzeFunc(func() (int, int) { return 0, 0 })
		assert.Error(t, err)
	})
}

func TestAnalyzer_Callable(t *testing.T) {
	analyzer := reflection.New()

	t.Run("no result", func(t *testing.T) {
		called := false
		info, err := analyzer.AnalyzeCallable(func(*Database) { called = true })
		require.NoError(t, err)
		assert.True(t, info.NoResult)

		v, err := info.Call([]any{&Database{}})
		require.NoError(t, err)
		assert.Nil(t, v)
		assert.True(t, called)
	})

	t.Run("only error", func(t *testing.T) {
		boom := errors.New("boom")
		info, err := analyzer.AnalyzeCallable(func() error { return boom })
		require.NoError(t, err)
		assert.True(t, info.NoResult)
		assert.True(t, info.ReturnsError)

		_, err = info.Call(nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("factory analysis rejects the cached callable", func(t *testing.T) {
		_, err := analyzer.AnalyzeFunc(func(*Database) {})
		assert.ErrorIs(t, err, reflection.ErrNoResult)
	})
}

func TestAnalyzer_CallArguments(t *testing.T) {
	analyzer := reflection.New()

	info, err := analyzer.AnalyzeFunc(NewUserService)
	require.NoError(t, err)

	_, err = info.Call([]any{&Database{}})
	assert.Error(t, err, "argument count is checked")

	v, err := info.Call([]any{nil, nil})
	require.NoError(t, err)
	svc := v.(*UserService)
	assert.Nil(t, svc.DB, "nil arguments become zero values")
	assert.Nil(t, svc.Logger)

	v, err = info.Call([]any{&Database{}, &ConsoleLogger{}})
	require.NoError(t, err)
	assert.IsType(t, &ConsoleLogger{}, v.(*UserService).Logger)
}

// Closures share their code pointer; every analysis must call the closure
// it was given.
func TestAnalyzer_Closures(t *testing.T) {
	analyzer := reflection.New()

	makeFactory := func(name string) func() *Database {
		return func() *Database { return &Database{ConnectionString: name} }
	}

	info1, err := analyzer.AnalyzeFunc(makeFactory("db1"))
	require.NoError(t, err)
	info2, err := analyzer.AnalyzeFunc(makeFactory("db2"))
	require.NoError(t, err)

	assert.Equal(t, info1.Type, info2.Type)
	assert.NotSame(t, info1, info2)

	v1, err := info1.Call(nil)
	require.NoError(t, err)
	v2, err := info2.Call(nil)
	require.NoError(t, err)

	assert.Equal(t, "db1", v1.(*Database).ConnectionString)
	assert.Equal(t, "db2", v2.(*Database).ConnectionString)
}

func TestAnalyzer_Methods(t *testing.T) {
	analyzer := reflection.New()

	var got []string
	type recorder struct{ name string }
	rec1 := &recorder{name: "one"}
	rec2 := &recorder{name: "two"}
	method := func(r *recorder) func() string {
		return func() string {
			got = append(got, r.name)
			return r.name
		}
	}

	info1, err := analyzer.AnalyzeFunc(method(rec1))
	require.NoError(t, err)
	info2, err := analyzer.AnalyzeFunc(method(rec2))
	require.NoError(t, err)

	_, _ = info1.Call(nil)
	_, _ = info2.Call(nil)
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestAnalyzer_ConcurrentAnalysis(t *testing.T) {
	analyzer := reflection.New()

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := analyzer.AnalyzeFunc(NewUserService); err != nil {
				errs <- err
			}
			if _, err := analyzer.InjectableFields(reflect.TypeOf(Handler{})); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent analysis failed: %v", err)
	}
}

func TestAnalyzer_InjectableFields(t *testing.T) {
	analyzer := reflection.New()

	fields, err := analyzer.InjectableFields(reflect.TypeOf(&Handler{}))
	require.NoError(t, err)
	require.Len(t, fields, 3, "untagged and unexported fields are skipped")

	assert.Equal(t, "DB", fields[0].Name)
	assert.Equal(t, reflect.TypeOf((*Database)(nil)), fields[0].Type)
	assert.False(t, fields[0].Optional)

	assert.Equal(t, "Logger", fields[1].Name)
	assert.True(t, fields[1].Optional)

	assert.Equal(t, "Replica", fields[2].Name)
	assert.Equal(t, "replica", fields[2].Key)

	again, err := analyzer.InjectableFields(reflect.TypeOf(Handler{}))
	require.NoError(t, err)
	assert.Equal(t, fields, again)

	_, err = analyzer.InjectableFields(reflect.TypeOf(42))
	assert.ErrorIs(t, err, reflection.ErrNotStruct)
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag  reflect.StructTag
		want reflection.TagInfo
	}{
		{``, reflection.TagInfo{}},
		{`inject:""`, reflection.TagInfo{Inject: true}},
		{`inject:"optional"`, reflection.TagInfo{Inject: true, Optional: true}},
		{`inject:"x, optional"`, reflection.TagInfo{Inject: true, Optional: true}},
		{`inject:"" name:"primary"`, reflection.TagInfo{Inject: true, Name: "primary"}},
		{`name:"primary"`, reflection.TagInfo{Name: "primary"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			assert.Equal(t, tt.want, reflection.ParseTag(tt.tag))
		})
	}
}

func TestSetField(t *testing.T) {
	h := &Handler{}
	ptr := reflect.ValueOf(h)

	db := &Database{ConnectionString: "set"}
	require.NoError(t, reflection.SetField(ptr, "DB", db))
	assert.Same(t, db, h.DB)

	require.NoError(t, reflection.SetField(ptr, "Logger", nil))
	assert.Nil(t, h.Logger)

	assert.Error(t, reflection.SetField(ptr, "Missing", db))
	assert.Error(t, reflection.SetField(ptr, "private", db))
	assert.ErrorIs(t, reflection.SetField(reflect.ValueOf(*h), "DB", db), reflection.ErrNotStruct)
}

func TestValueFor(t *testing.T) {
	type ID int

	assert.Equal(t, ID(7), reflection.ValueFor(reflect.TypeOf(ID(0)), 7).Interface(), "convertible values are converted")
	assert.Equal(t, "", reflection.ValueFor(reflect.TypeOf(""), nil).Interface())
	assert.Equal(t, "", reflection.ValueFor(reflect.TypeOf(""), 3.5).Interface(), "mismatches become zero values")
}
