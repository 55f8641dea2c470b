package config

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// --- Bool coercion ---

func TestCoerce_BoolStrings(t *testing.T) {
	truthy := []string{"true", "True", "TRUE", "1", "yes", "YES", "on", "On"}
	falsy := []string{"false", "False", "FALSE", "0", "no", "NO", "off", "Off"}

	for _, s := range truthy {
		v, err := Coerce(s, TypeBool)
		require.NoError(t, err, s)
		assert.Equal(t, true, v, s)
	}
	for _, s := range falsy {
		v, err := Coerce(s, TypeBool)
		require.NoError(t, err, s)
		assert.Equal(t, false, v, s)
	}
}

func TestCoerce_BoolNumbers(t *testing.T) {
	v, err := Coerce(3, TypeBool)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = Coerce(0, TypeBool)
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = Coerce(0.0, TypeBool)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestCoerce_BoolRejectsGarbage(t *testing.T) {
	_, err := Coerce("maybe", TypeBool)
	require.Error(t, err)
	var cerr *CoercionError
	assert.ErrorAs(t, err, &cerr)
}

// --- List coercion ---

func TestCoerce_ListFromJSON(t *testing.T) {
	v, err := Coerce(`["123", "456"]`, TypeList)
	require.NoError(t, err)
	assert.Equal(t, []any{"123", "456"}, v)

	v, err = Coerce(`[1, 2, 3]`, TypeList)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, v)
}

func TestCoerce_ListRejectsNonArray(t *testing.T) {
	_, err := Coerce(`{"a": 1}`, TypeList)
	require.Error(t, err)

	_, err = Coerce("123,456", TypeList)
	require.Error(t, err, "comma lists are not supported, JSON only")

	_, err = Coerce(42, TypeList)
	require.Error(t, err)
}

// --- Scalar coercion ---

func TestCoerce_Scalars(t *testing.T) {
	v, err := Coerce("42", TypeInt)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Coerce(" 42 ", TypeInt)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Coerce("2.5", TypeFloat)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	v, err = Coerce(7, TypeString)
	require.NoError(t, err)
	assert.Equal(t, "7", v)

	_, err = Coerce("not a number", TypeInt)
	require.Error(t, err)
}

func TestCoerce_NoMapCoercion(t *testing.T) {
	// Maps only come from manifests; there is no string form to coerce from.
	_, err := Coerce(`{"a": 1}`, TypeMap)
	require.Error(t, err)
}

// --- Properties ---

func TestCoerce_AlreadyTypedIsIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		v, err := Coerce(s, TypeString)
		require.NoError(t, err)
		assert.Equal(t, s, v)
	})
}

func TestCoerce_IntStringRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Int().Draw(t, "n")
		v, err := Coerce(strconv.Itoa(n), TypeInt)
		require.NoError(t, err)
		assert.Equal(t, n, v)
	})
}

func TestCoerce_Idempotent(t *testing.T) {
	// Coercing an already-coerced value is the identity.
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Int64().Draw(t, "n")
		target := rapid.SampledFrom([]ValueType{TypeString, TypeBool, TypeFloat}).Draw(t, "target")

		once, err := Coerce(n, target)
		require.NoError(t, err, fmt.Sprintf("first coercion of %d to %s", n, target))
		twice, err := Coerce(once, target)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	})
}
