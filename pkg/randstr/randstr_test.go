package randstr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func TestGenerateRandomString(t *testing.T) {
	g := New([]byte(alphanumeric))

	for i := 0; i < 1000; i++ {
		s := g.GenerateRandomString(10)
		assert.Len(t, s, 10)
		for _, r := range s {
			assert.True(t, strings.ContainsRune(alphanumeric, r), "unexpected rune %q", r)
		}
	}
}

func TestGenerateRandomStringZeroLength(t *testing.T) {
	g := New([]byte(alphanumeric))
	assert.Equal(t, "", g.GenerateRandomString(0))
}

func TestGenerateRandomStringSingleLetter(t *testing.T) {
	g := New([]byte("x"))
	assert.Equal(t, "xxxx", g.GenerateRandomString(4))
}
