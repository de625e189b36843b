package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	h := New()

	encoded, err := h.Hash("Abc123!pass")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))
	assert.NotContains(t, encoded, "Abc123!pass")

	ok, err := h.Verify("Abc123!pass", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("Abc123!pasS", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := New()

	first, err := h.Hash("same-secret")
	require.NoError(t, err)
	second, err := h.Hash("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	for _, encoded := range []string{first, second} {
		ok, err := h.Verify("same-secret", encoded)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestVerifyCorruptHash(t *testing.T) {
	h := New()

	cases := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"plaintext", "not-a-hash"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$a2V5"},
		{"bad version", "$argon2id$v=12$m=65536,t=3,p=2$c2FsdA$a2V5"},
		{"missing params", "$argon2id$v=19$m=65536$c2FsdA$a2V5"},
		{"bad salt encoding", "$argon2id$v=19$m=65536,t=3,p=2$!!!$a2V5"},
		{"empty key", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Verify("anything", tc.encoded)
			assert.ErrorIs(t, err, ErrCorruptHash)
		})
	}
}

func TestVerifyHonorsEmbeddedParams(t *testing.T) {
	weak := &Hasher{memory: 8 * 1024, time: 1, parallelism: 1, saltLength: 16, keyLength: 16}
	encoded, err := weak.Hash("portable-secret")
	require.NoError(t, err)

	// A hasher configured with stronger params still verifies hashes
	// produced under the parameters recorded in the encoding.
	ok, err := New().Verify("portable-secret", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}
