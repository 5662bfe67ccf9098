package hash

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPathID(t *testing.T) {
	tests := []struct {
		name string
		path string
		id   uint64
	}{
		{"empty string", "", 0xef46db3751d8e999},
		{"bare name", "test", 0x4fdcca5ddb678139},
		{"long path", "this is a longer test string to hash", 0x69275f7f7ee59dbd},
		{"another path", "another test string", 0x212a22f593810bec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.id, PathID(tt.path))
		})
	}
}

func randPath(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, n)
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := range b {
		b[i] = letters[seededRand.Intn(len(letters))]
	}

	return string(b)
}

func BenchmarkPathID(b *testing.B) {
	path := "top." + randPath(16) + ".sig"
	b.ResetTimer()
	for b.Loop() {
		PathID(path)
	}
}
