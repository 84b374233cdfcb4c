package randstr

import (
	"crypto/rand"
	"math/big"
)

type Generator struct {
	letters []byte
	max     *big.Int
}

// New returns a generator drawing uniformly from letters using crypto/rand.
func New(letters []byte) *Generator {
	l := make([]byte, len(letters))
	copy(l, letters)

	return &Generator{
		letters: l,
		max:     big.NewInt(int64(len(l))),
	}
}

func (g *Generator) GenerateRandomString(length int) string {
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, g.max)
		if err != nil {
			panic("randstr: crypto/rand failed: " + err.Error())
		}
		b[i] = g.letters[n.Int64()]
	}

	return string(b)
}
