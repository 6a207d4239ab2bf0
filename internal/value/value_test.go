package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCopyInputs(t *testing.T) {
	items := []Value{String("a"), Int(1)}
	arr := Array(items...)
	items[0] = String("changed")
	got, ok := arr.AsArray()
	require.True(t, ok)
	assert.True(t, got[0].Equal(String("a")))

	fields := map[string]Value{"k": Bool(true)}
	obj := Object(fields)
	fields["k"] = Bool(false)
	f, ok := obj.Field("k")
	require.True(t, ok)
	assert.True(t, f.Equal(Bool(true)))

	mime := "image/png"
	data := []byte{1, 2, 3}
	bin := Binary(&mime, data)
	mime = "text/plain"
	data[0] = 9
	gotMime, gotData, ok := bin.AsBinary()
	require.True(t, ok)
	assert.Equal(t, "image/png", *gotMime)
	assert.Equal(t, []byte{1, 2, 3}, gotData)
}

func TestAccessorsRejectOtherKinds(t *testing.T) {
	v := Int(7)
	_, ok := v.AsString()
	assert.False(t, ok)
	_, ok = v.AsDouble()
	assert.False(t, ok)
	_, ok = v.AsObject()
	assert.False(t, ok)
	_, ok = v.Field("x")
	assert.False(t, ok)
	i, ok := v.AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(7), i)
	assert.True(t, Null().IsNull())
}

func TestEqual(t *testing.T) {
	png := "image/png"
	tests := []struct {
		name  string
		a, b  Value
		equal bool
	}{
		{"null", Null(), Null(), true},
		{"int vs double", Int(1), Double(1), false},
		{"strings", String("x"), String("x"), true},
		{"arrays differ in order", Array(Int(1), Int(2)), Array(Int(2), Int(1)), false},
		{"objects", Object(map[string]Value{"a": Int(1)}), Object(map[string]Value{"a": Int(1)}), true},
		{"object missing key", Object(map[string]Value{"a": Int(1)}), Object(map[string]Value{"b": Int(1)}), false},
		{"binary mime", Binary(&png, []byte("x")), Binary(nil, []byte("x")), false},
		{"binary same", Binary(&png, []byte("x")), Binary(&png, []byte("x")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	png := "image/png"
	v := Object(map[string]Value{
		"z":    Int(1),
		"a":    Array(Double(1.5), Bool(false), Null()),
		"data": Binary(&png, []byte("hi")),
	})
	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1.5,false,null],"data":"data:image/png;base64,aGk=","z":1}`, string(out))
}

func TestParse(t *testing.T) {
	v, err := Parse([]byte(`{"n":3,"f":3.0,"e":1e3,"big":18446744073709551616,"s":"x","b":true,"nil":null,"list":[1,"two"]}`))
	require.NoError(t, err)

	n, _ := v.Field("n")
	assert.Equal(t, KindInt, n.Kind())
	f, _ := v.Field("f")
	assert.Equal(t, KindDouble, f.Kind())
	e, _ := v.Field("e")
	assert.Equal(t, KindDouble, e.Kind())
	big, _ := v.Field("big")
	assert.Equal(t, KindDouble, big.Kind())
	s, _ := v.Field("s")
	assert.True(t, s.Equal(String("x")))
	b, _ := v.Field("b")
	assert.True(t, b.Equal(Bool(true)))
	null, _ := v.Field("nil")
	assert.True(t, null.IsNull())
	list, _ := v.Field("list")
	assert.True(t, list.Equal(Array(Int(1), String("two"))))
}

func TestParseDataURL(t *testing.T) {
	v, err := Parse([]byte(`"data:audio/wav;base64,AAEC"`))
	require.NoError(t, err)
	mime, data, ok := v.AsBinary()
	require.True(t, ok)
	assert.Equal(t, "audio/wav", *mime)
	assert.Equal(t, []byte{0, 1, 2}, data)

	v, err = Parse([]byte(`"data:text/plain,hello"`))
	require.NoError(t, err)
	assert.Equal(t, KindString, v.Kind())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte(`{"a":`))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestWireRoundTrip(t *testing.T) {
	png := "image/png"
	in := Object(map[string]Value{
		"query": String("go"),
		"limit": Int(5),
		"ratio": Double(0.25),
		"image": Binary(&png, []byte{0xff, 0x00}),
		"tags":  Array(String("a"), Null()),
	})
	out, err := json.Marshal(in)
	require.NoError(t, err)

	var back Value
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, in.Equal(back), "got %#v", back)
}

func TestGoStringSortsKeys(t *testing.T) {
	v := Object(map[string]Value{"b": Int(2), "a": String("x")})
	assert.Equal(t, `{"a": "x", "b": 2}`, v.GoString())
}

func TestGoStringMarksDoubles(t *testing.T) {
	tests := []struct {
		in   Value
		want string
	}{
		{Int(2), "2"},
		{Double(2), "2.0"},
		{Double(-0.5), "-0.5"},
		{Double(1e21), "1e+21"},
		{Array(Int(1), Double(1)), "[1, 1.0]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.GoString())
	}
}

func TestParseTextKeepsDataURLs(t *testing.T) {
	doc := []byte(`{"default":"data:text/plain;base64,aGk=","n":[1,2.5]}`)

	text, err := ParseText(doc)
	require.NoError(t, err)
	def, ok := text.Field("default")
	require.True(t, ok)
	assert.Equal(t, KindString, def.Kind())

	wire, err := Parse(doc)
	require.NoError(t, err)
	def, ok = wire.Field("default")
	require.True(t, ok)
	assert.Equal(t, KindBinary, def.Kind())

	_, err = ParseText([]byte("{"))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}
