package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct{ A int }

type sampleConf struct {
	A       int           `json:"a"`
	Timeout time.Duration `json:"timeout"`
}

// Test registry registration and instantiation using Decode.
func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry[*sample]()
	if err := reg.Register("s", func(conf map[string]any) (*sample, error) {
		var c sampleConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &sample{A: c.A}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	inst, err := reg.Create(ModuleConfig{Type: "s", Conf: map[string]any{"a": 3}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inst.A != 3 {
		t.Fatalf("expected 3 got %d", inst.A)
	}
}

// Test duplicate registration and unknown type errors.
func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[int]()
	if err := reg.Register("x", func(map[string]any) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("x", nil); err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, err := reg.Create(ModuleConfig{Type: "y"}); err == nil {
		t.Fatal("expected unknown type error")
	}
}

func TestRegistry_CreateAllAndTypes(t *testing.T) {
	reg := NewRegistry[string]()
	require.NoError(t, reg.Register("b", func(map[string]any) (string, error) { return "b", nil }))
	require.NoError(t, reg.Register("a", func(map[string]any) (string, error) { return "a", nil }))
	assert.Equal(t, []string{"a", "b"}, reg.Types())

	got, err := reg.CreateAll([]ModuleConfig{{Type: "b"}, {Type: "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, got)

	got, err = reg.CreateAll([]ModuleConfig{{Type: "a"}, {Type: "zzz"}})
	assert.Error(t, err)
	assert.Equal(t, []string{"a"}, got)
}

func TestDecodeWeakTypes(t *testing.T) {
	var c sampleConf
	require.NoError(t, Decode(map[string]any{"a": "7", "timeout": "1500ms"}, &c))
	assert.Equal(t, 7, c.A)
	assert.Equal(t, 1500*time.Millisecond, c.Timeout)
}
