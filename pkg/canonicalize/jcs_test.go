package canonicalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCS_Sorting(t *testing.T) {
	input := map[string]any{
		"c": 3,
		"a": 1,
		"b": 2,
	}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(b))
}

func TestJCS_RecursiveSorting(t *testing.T) {
	input := map[string]any{
		"z": map[string]any{
			"y": "foo",
			"x": "bar",
		},
		"a": 1,
	}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"z":{"x":"bar","y":"foo"}}`, string(b))
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	input := map[string]string{
		"html": "<b>tighten</b> & relax",
	}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<b>tighten</b> & relax"}`, string(b))
}

func TestJCS_StructTags(t *testing.T) {
	type record struct {
		Second string `json:"second"`
		First  int    `json:"first"`
		Skip   string `json:"-"`
	}

	b, err := JCS(record{Second: "b", First: 1, Skip: "hidden"})
	require.NoError(t, err)
	assert.Equal(t, `{"first":1,"second":"b"}`, string(b))
}

func TestJCS_UnsupportedValue(t *testing.T) {
	_, err := JCS(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	a, err := Digest(map[string]any{"x": 1, "y": []string{"c1"}})
	require.NoError(t, err)
	b, err := Digest(map[string]any{"y": []string{"c1"}, "x": 1})
	require.NoError(t, err)

	assert.Equal(t, a, b, "key order must not change the digest")
	assert.True(t, ValidDigest(a))

	c, err := Digest(map[string]any{"x": 2, "y": []string{"c1"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestValidDigest(t *testing.T) {
	assert.False(t, ValidDigest(""))
	assert.False(t, ValidDigest("md5:abcd"))
	assert.False(t, ValidDigest("sha256:zz"))
	assert.True(t, ValidDigest(DigestPrefix+HashBytes([]byte("covenant"))))
}
