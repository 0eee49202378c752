package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type owns struct {
	Since uint32
	Tags  []string
}

type unregistered struct{ N int }

func init() {
	MustRegister[owns]("test.owns")
}

func TestEquality(t *testing.T) {
	assert.True(t, None().Equal(None()))
	assert.True(t, New(uint32(5)).Equal(New(uint32(5))))
	assert.False(t, New(uint32(5)).Equal(New(int64(5))))
	assert.False(t, New(uint32(5)).Equal(None()))
	assert.False(t, None().Equal(New(uint32(5))))
	assert.True(t, New(owns{Since: 2019, Tags: []string{"a"}}).Equal(New(owns{Since: 2019, Tags: []string{"a"}})))
	assert.True(t, New(nil).IsNone())
}

func TestGetTypeMismatch(t *testing.T) {
	_, err := Get[string](New(uint32(5)))
	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "string", mismatch.Expected)
	assert.Equal(t, "uint32", mismatch.Found)

	_, err = Get[uint32](None())
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "None", mismatch.Found)

	_, err = GetMut[string](&Data{})
	require.ErrorAs(t, err, &mismatch)
}

func TestGet(t *testing.T) {
	v, err := Get[uint32](New(uint32(5)))
	require.NoError(t, err)
	assert.Equal(t, uint32(5), v)
}

func TestGetMutDoesNotLeakToOtherHolders(t *testing.T) {
	original := New(owns{Since: 2019, Tags: []string{"a"}})
	shared := original

	p, err := GetMut[owns](&shared)
	require.NoError(t, err)
	p.Since = 2024
	p.Tags[0] = "b"

	before, err := Get[owns](original)
	require.NoError(t, err)
	assert.Equal(t, uint32(2019), before.Since)
	assert.Equal(t, []string{"a"}, before.Tags)

	after, err := Get[owns](shared)
	require.NoError(t, err)
	assert.Equal(t, uint32(2024), after.Since)
	assert.Equal(t, []string{"b"}, after.Tags)
}

func TestStoredValueIsIsolatedFromCaller(t *testing.T) {
	payload := owns{Tags: []string{"a"}}
	d := New(payload)
	payload.Tags[0] = "changed"

	got, err := Get[owns](d)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Tags[0])

	got.Tags[0] = "changed again"
	again, err := Get[owns](d)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Tags[0])
}

func TestString(t *testing.T) {
	assert.Equal(t, "None", None().String())
	assert.Equal(t, "Some(5)", New(uint32(5)).String())
	assert.Equal(t, "Some({Since:2019 Tags:[a]})", New(owns{Since: 2019, Tags: []string{"a"}}).String())
}

func TestMsgpackRoundTrip(t *testing.T) {
	for _, d := range []Data{
		None(),
		New(uint32(5)),
		New(int64(-5)),
		New("hello"),
		New([]byte{1, 2}),
		New(owns{Since: 2019, Tags: []string{"x", "y"}}),
	} {
		b, err := msgpack.Marshal(d)
		require.NoError(t, err)

		var out Data
		require.NoError(t, msgpack.Unmarshal(b, &out))
		assert.True(t, d.Equal(out), "round trip of %v gave %v", d, out)
	}
}

func TestMsgpackUnregistered(t *testing.T) {
	_, err := msgpack.Marshal(New(unregistered{N: 1}))
	assert.ErrorIs(t, err, ErrUnregisteredType)

	b, err := msgpack.Marshal([]any{"nope", 1})
	require.NoError(t, err)
	var out Data
	assert.ErrorIs(t, msgpack.Unmarshal(b, &out), ErrUnknownTag)
}

func TestRegisterConflicts(t *testing.T) {
	require.NoError(t, Register[owns]("test.owns"))
	assert.ErrorIs(t, Register[unregistered]("test.owns"), ErrTagConflict)
	assert.ErrorIs(t, Register[owns]("test.owns.v2"), ErrTagConflict)

	tag, ok := New(owns{}).Tag()
	assert.True(t, ok)
	assert.Equal(t, "test.owns", tag)
}
