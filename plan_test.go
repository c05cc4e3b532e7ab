package acorn

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testTimeouts struct {
	Read    time.Duration `default:"5s"`
	Retries uint8         `default:"3"`
	Ratio   float64       `default:"0.5"`
	Verbose bool          `default:"true"`
	Mask    int           `default:"0x1f"`
}

func TestParamName(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"Port", "port"},
		{"DSN", "dsn"},
		{"ID", "id"},
		{"HTTPClient", "httpClient"},
		{"DatabaseURL", "databaseURL"},
		{"userID", "userID"},
		{"X", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, paramName(tt.field))
		})
	}
}

func TestInferable(t *testing.T) {
	assert.False(t, inferable(reflect.TypeOf("")))
	assert.False(t, inferable(reflect.TypeOf(0)))
	assert.False(t, inferable(reflect.TypeOf(time.Duration(0))))
	assert.False(t, inferable(reflect.TypeOf((*any)(nil)).Elem()))

	assert.True(t, inferable(reflect.TypeOf(&testLogger{})))
	assert.True(t, inferable(reflect.TypeOf(testConfig{})))
	assert.True(t, inferable(reflect.TypeOf((*testStore)(nil)).Elem()))
	assert.True(t, inferable(reflect.TypeOf([]string{})))
}

func TestParseDefault(t *testing.T) {
	t.Run("supported kinds", func(t *testing.T) {
		p, err := planStruct(reflect.TypeOf(testTimeouts{}))
		require.NoError(t, err)
		require.Len(t, p.Params, 5)

		args := make([]reflect.Value, len(p.Params))
		for i, param := range p.Params {
			require.True(t, param.HasDefault, param.Name)
			args[i] = param.Default
		}

		out, err := p.build(args)
		require.NoError(t, err)
		got := out.Interface().(testTimeouts)
		assert.Equal(t, testTimeouts{
			Read:    5 * time.Second,
			Retries: 3,
			Ratio:   0.5,
			Verbose: true,
			Mask:    31,
		}, got)
	})

	t.Run("overflow", func(t *testing.T) {
		_, err := parseDefault(reflect.TypeOf(uint8(0)), "300")
		require.Error(t, err)
	})

	t.Run("unsupported kind", func(t *testing.T) {
		_, err := parseDefault(reflect.TypeOf([]string{}), "a,b")
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := parseDefault(reflect.TypeOf(time.Duration(0)), "soon")
		require.Error(t, err)
	})
}

func TestPlanStruct(t *testing.T) {
	p, err := planStruct(reflect.TypeOf(&testServer{}))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(&testServer{}), p.Type)

	byName := make(map[string]Param)
	for _, param := range p.Params {
		byName[param.Name] = param
	}

	assert.Len(t, p.Params, 4)
	assert.Contains(t, byName, "logger")
	assert.Contains(t, byName, "port")
	assert.Contains(t, byName, "host")
	assert.Contains(t, byName, "store")
	assert.NotContains(t, byName, "ignored")
	assert.NotContains(t, byName, "private")

	assert.True(t, byName["logger"].Token.Equal(TypeOf[*testLogger]()))
	assert.True(t, byName["port"].Token.IsZero())
	assert.True(t, byName["store"].Optional)
	assert.Equal(t, "localhost", byName["host"].Default.String())
}

func TestPlanFunc(t *testing.T) {
	fn := func(ctx context.Context, r Resolver, l *testLogger, dsn string, extra ...int) (*testDatabase, error) {
		return &testDatabase{Logger: l}, nil
	}

	p := planFunc(reflect.ValueOf(fn))
	require.Len(t, p.Params, 4)
	assert.Equal(t, reflect.TypeOf(&testDatabase{}), p.Type)

	assert.Equal(t, intrinsicContext, p.Params[0].intrinsic)
	assert.Equal(t, intrinsicResolver, p.Params[1].intrinsic)
	assert.True(t, p.Params[2].Token.Equal(TypeOf[*testLogger]()))
	assert.True(t, p.Params[3].Token.IsZero())
	assert.Equal(t, "arg3", p.Params[3].Name)
	assert.False(t, p.Params[3].byName)
}
