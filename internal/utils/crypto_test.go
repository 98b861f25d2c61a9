package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	ok, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	first, err := HashPassword("same input")
	require.NoError(t, err)
	second, err := HashPassword("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"not a hash":      "plaintext",
		"wrong algorithm": "$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$a2V5",
		"wrong version":   "$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$a2V5",
		"missing parts":   "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA",
		"bad parameters":  "$argon2id$v=19$m=abc$c2FsdA$a2V5",
		"bad salt":        "$argon2id$v=19$m=65536,t=3,p=2$!!!$a2V5",
		"bad key":         "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$!!!",
	}

	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := VerifyPassword("anything", encoded)
			assert.Error(t, err)
		})
	}
}
