package reader

import (
	"github.com/arloliu/wavefst/internal/options"
)

type config struct {
	parallelChains int
}

func defaultConfig() config {
	return config{parallelChains: 1}
}

// Option configures a Reader at open time.
type Option = options.Option[*config]

// WithParallelChains sets how many chain payloads decompress concurrently
// when a value-change block is opened. Values below two keep decompression
// sequential.
func WithParallelChains(n int) Option {
	return options.NoError(func(cfg *config) {
		cfg.parallelChains = n
	})
}
