package writer

import (
	"fmt"

	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
	"github.com/arloliu/wavefst/internal/options"
)

// DefaultFlushThreshold is the number of buffered changes that triggers an
// automatic value-change block flush.
const DefaultFlushThreshold = 1 << 16

type config struct {
	timescaleExponent int8
	version           string
	date              string
	fileType          format.FileType
	timeZero          uint64
	startTime         uint64

	chainCompression     format.Compression
	timeZlib             bool
	frameZlib            bool
	hierarchyCompression format.HierarchyCompression
	dynAlias2            bool
	zWrapper             bool
	flushThreshold       int
}

func defaultConfig() config {
	return config{
		timescaleExponent:    -9,
		version:              "wavefst",
		chainCompression:     format.CompressionZlib,
		timeZlib:             true,
		frameZlib:            true,
		hierarchyCompression: format.HierarchyZlib,
		flushThreshold:       DefaultFlushThreshold,
	}
}

// Option configures a Writer at construction time.
type Option = options.Option[*config]

// WithTimescale sets the base-10 timescale exponent recorded in the header,
// e.g. -9 for nanoseconds.
func WithTimescale(exponent int8) Option {
	return options.NoError(func(cfg *config) {
		cfg.timescaleExponent = exponent
	})
}

// WithVersion sets the version string recorded in the header.
func WithVersion(version string) Option {
	return options.NoError(func(cfg *config) {
		cfg.version = version
	})
}

// WithDate sets the date string recorded in the header.
func WithDate(date string) Option {
	return options.NoError(func(cfg *config) {
		cfg.date = date
	})
}

// WithFileType records the source language in the header.
func WithFileType(fileType format.FileType) Option {
	return options.NoError(func(cfg *config) {
		cfg.fileType = fileType
	})
}

// WithTimeZero sets the global time offset recorded in the header.
func WithTimeZero(timeZero uint64) Option {
	return options.NoError(func(cfg *config) {
		cfg.timeZero = timeZero
	})
}

// WithStartTime sets the header start time. Defaults to zero.
func WithStartTime(startTime uint64) Option {
	return options.NoError(func(cfg *config) {
		cfg.startTime = startTime
	})
}

// WithChainCompression selects the codec for per-handle chain payloads.
// Chains that fail to shrink are stored raw regardless.
func WithChainCompression(c format.Compression) Option {
	return options.New(func(cfg *config) error {
		switch c {
		case format.CompressionNone, format.CompressionZlib,
			format.CompressionLz4, format.CompressionFastLz:
			cfg.chainCompression = c

			return nil
		default:
			return fmt.Errorf("%w: %v", errs.ErrUnsupportedCompression, c)
		}
	})
}

// WithTimeCompression toggles zlib compression of the block time table.
func WithTimeCompression(enabled bool) Option {
	return options.NoError(func(cfg *config) {
		cfg.timeZlib = enabled
	})
}

// WithFrameCompression toggles zlib compression of the initial-value frame.
func WithFrameCompression(enabled bool) Option {
	return options.NoError(func(cfg *config) {
		cfg.frameZlib = enabled
	})
}

// WithHierarchyCompression selects the on-disk form of the hierarchy block.
func WithHierarchyCompression(c format.HierarchyCompression) Option {
	return options.New(func(cfg *config) error {
		switch c {
		case format.HierarchyRaw, format.HierarchyZlib,
			format.HierarchyLz4, format.HierarchyLz4Duo:
			cfg.hierarchyCompression = c

			return nil
		default:
			return fmt.Errorf("%w: %v", errs.ErrUnsupportedCompression, c)
		}
	})
}

// WithDynAlias2 switches value-change blocks to the signed chain-index
// flavor (block type 8).
func WithDynAlias2(enabled bool) Option {
	return options.NoError(func(cfg *config) {
		cfg.dynAlias2 = enabled
	})
}

// WithZWrapper wraps the entire output in one zlib envelope block when the
// writer finishes.
func WithZWrapper(enabled bool) Option {
	return options.NoError(func(cfg *config) {
		cfg.zWrapper = enabled
	})
}

// WithFlushThreshold sets how many buffered changes accumulate before a
// value-change block is written automatically. Values below one disable
// automatic flushing.
func WithFlushThreshold(changes int) Option {
	return options.NoError(func(cfg *config) {
		cfg.flushThreshold = changes
	})
}

func (cfg config) vcBlockType() format.BlockType {
	if cfg.dynAlias2 {
		return format.BlockVcDataDynAlias2
	}

	return format.BlockVcData
}
