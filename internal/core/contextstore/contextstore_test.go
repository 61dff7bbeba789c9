package contextstore

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	data := map[string]interface{}{
		"a": map[string]interface{}{"b": 5.0},
		"list": []interface{}{
			map[string]interface{}{"id": "first"},
			"second",
		},
		"nil": nil,
	}

	tests := []struct {
		name   string
		path   string
		want   interface{}
		wantOK bool
	}{
		{"nested key", "a.b", 5.0, true},
		{"bracket index", "list[0].id", "first", true},
		{"dotted index", "list.1", "second", true},
		{"quoted key", `a["b"]`, 5.0, true},
		{"present nil", "nil", nil, true},
		{"missing leaf", "a.c", nil, false},
		{"missing intermediate", "x.y.z", nil, false},
		{"through scalar", "a.b.c", nil, false},
		{"index out of range", "list[5]", nil, false},
		{"key on slice", "list.id", nil, false},
		{"empty path", "", nil, false},
		{"unclosed bracket", "list[0", nil, false},
		{"double dot", "a..b", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(data, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	shapes := []map[string]interface{}{
		nil,
		{},
		{"a": "scalar"},
		{"a": map[string]interface{}{"b": "old", "c": 2.0}},
		{"a": []interface{}{"x"}},
	}

	for _, shape := range shapes {
		next := Set(shape, "a.b", 1)
		assert.Equal(t, 1, Get(next, "a.b"))
	}
}

func TestSetIsCopyOnWrite(t *testing.T) {
	inner := map[string]interface{}{"b": "old", "keep": true}
	root := map[string]interface{}{"a": inner, "other": "x"}

	next := Set(root, "a.b", "new")

	assert.Equal(t, "old", inner["b"])
	assert.Equal(t, "old", Get(root, "a.b"))
	assert.Equal(t, "new", Get(next, "a.b"))
	assert.Equal(t, true, Get(next, "a.keep"))
	assert.Equal(t, "x", next["other"])
	assert.NotEqual(t, reflect.ValueOf(root).Pointer(), reflect.ValueOf(next).Pointer())
}

func TestSetCreatesSlicesForBracketIndexes(t *testing.T) {
	next := Set(nil, "rows[2].name", "c")

	rows, ok := next["rows"].([]interface{})
	require.True(t, ok)
	assert.Len(t, rows, 3)
	assert.Nil(t, rows[0])
	assert.Equal(t, "c", Get(next, "rows[2].name"))
}

func TestSetExtendsExistingSlice(t *testing.T) {
	orig := []interface{}{"a"}
	root := map[string]interface{}{"list": orig}

	next := Set(root, "list[1]", "b")

	assert.Equal(t, []interface{}{"a", "b"}, next["list"])
	assert.Len(t, orig, 1)
}

func TestSetUnreadablePathIsNoop(t *testing.T) {
	root := map[string]interface{}{"a": 1}
	assert.Equal(t, root, Set(root, "a[", 2))
}

func TestInterpolate(t *testing.T) {
	data := map[string]interface{}{
		"a":    map[string]interface{}{"b": 5.0},
		"name": "Ada",
		"flag": true,
		"obj":  map[string]interface{}{"k": "v"},
	}

	tests := []struct {
		name string
		data map[string]interface{}
		tmpl string
		want string
	}{
		{"number", data, "{{a.b}}", "5"},
		{"missing on empty", map[string]interface{}{}, "{{a.b}}", ""},
		{"surrounding text", data, "Hello, {{ name }}!", "Hello, Ada!"},
		{"multiple", data, "{{name}}/{{flag}}/{{missing}}", "Ada/true/"},
		{"object as json", data, "{{obj}}", `{"k":"v"}`},
		{"empty placeholder", data, "x{{}}y", "xy"},
		{"unterminated", data, "{{name", "{{name"},
		{"no placeholders", data, "plain text", "plain text"},
		{"nil data", nil, "{{a}}", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, Interpolate(tt.data, tt.tmpl))
			})
		})
	}
}

func TestStore(t *testing.T) {
	s := NewStore(nil)

	before := s.Data()
	after := s.Set("user.name", "Ada")
	s.SetStepIndex(3)

	assert.Empty(t, before)
	assert.Equal(t, "Ada", after["user"].(map[string]interface{})["name"])
	assert.Equal(t, "Ada", s.Get("user.name"))
	assert.Equal(t, "Hi Ada", s.Interpolate("Hi {{user.name}}"))
	assert.Equal(t, 3, s.StepIndex())

	s.Reset()
	_, ok := s.Lookup("user.name")
	assert.False(t, ok)
	assert.Equal(t, 0, s.StepIndex())

	s.Replace(map[string]interface{}{"x": 1})
	assert.Equal(t, 1, s.Get("x"))
}
