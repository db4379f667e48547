package cryptox

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func testKey() []byte {
	return DeriveKey([]byte("activation-secret"), []byte("fixed-salt"))
}

func TestDeriveKey_Deterministic(t *testing.T) {
	key1 := DeriveKey([]byte("secret"), []byte("salt"))
	key2 := DeriveKey([]byte("secret"), []byte("salt"))

	assert.Len(t, key1, KeySize)
	assert.True(t, bytes.Equal(key1, key2), "same inputs must derive the same key")
}

func TestDeriveKey_DifferentSalts(t *testing.T) {
	key1 := DeriveKey([]byte("secret"), []byte("salt-1"))
	key2 := DeriveKey([]byte("secret"), []byte("salt-2"))

	assert.False(t, bytes.Equal(key1, key2))
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := testKey()
	in := payload{ID: 42, Name: "alice"}

	sealed, err := SealJSON(in, key)
	require.NoError(t, err)

	var out payload
	require.NoError(t, OpenJSON(sealed, key, &out))
	assert.Equal(t, in, out)
}

func TestSealJSON_FreshNoncePerCall(t *testing.T) {
	key := testKey()

	a, err := SealJSON(payload{ID: 1}, key)
	require.NoError(t, err)
	b, err := SealJSON(payload{ID: 1}, key)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestSealJSON_Errors(t *testing.T) {
	_, err := SealJSON(payload{}, []byte("short"))
	require.Error(t, err, "invalid AES key length")

	_, err = SealJSON(func() {}, testKey())
	require.Error(t, err, "functions cannot be marshaled")
}

func TestOpenJSON_TamperEveryByte(t *testing.T) {
	key := testKey()
	sealed, err := SealJSON(payload{ID: 7, Name: "bob"}, key)
	require.NoError(t, err)

	for i := range sealed {
		tampered := append([]byte(nil), sealed...)
		tampered[i] ^= 0x01

		var out payload
		err := OpenJSON(tampered, key, &out)
		require.ErrorIs(t, err, ErrAuthFailed, "byte %d", i)
	}
}

func TestOpenJSON_WrongKey(t *testing.T) {
	sealed, err := SealJSON(payload{ID: 7}, testKey())
	require.NoError(t, err)

	var out payload
	err = OpenJSON(sealed, DeriveKey([]byte("other"), []byte("fixed-salt")), &out)
	assert.True(t, errors.Is(err, ErrAuthFailed))
}

func TestOpenJSON_Truncated(t *testing.T) {
	var out payload
	for _, n := range []int{0, 1, 12, 27} {
		err := OpenJSON(make([]byte, n), testKey(), &out)
		assert.ErrorIs(t, err, ErrMalformed, "len %d", n)
	}
}

func TestOpenJSON_NotJSONInside(t *testing.T) {
	key := testKey()
	sealed, err := SealJSON("plain string", key)
	require.NoError(t, err)

	var out payload
	err = OpenJSON(sealed, key, &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthFailed)
}
