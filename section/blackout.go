package section

import (
	"fmt"

	"github.com/arloliu/wavefst/encoding"
	"github.com/arloliu/wavefst/errs"
	"github.com/arloliu/wavefst/format"
)

// EncodeBlackoutBlock serializes dump on/off events into a blackout block
// payload. Times are delta encoded against the previous event; an
// out-of-order event saturates to delta zero rather than failing.
func EncodeBlackoutBlock(events []format.BlackoutEvent) []byte {
	payload := encoding.AppendUvarint(nil, uint64(len(events)))
	prev := uint64(0)
	for _, ev := range events {
		activity := byte(0)
		if ev.Active {
			activity = 1
		}
		payload = append(payload, activity)

		delta := uint64(0)
		if ev.Time > prev {
			delta = ev.Time - prev
		}
		payload = encoding.AppendUvarint(payload, delta)
		prev = ev.Time
	}

	return payload
}

// DecodeBlackoutBlock parses a blackout block payload.
func DecodeBlackoutBlock(payload []byte) ([]format.BlackoutEvent, error) {
	count, n, err := encoding.Uvarint(payload)
	if err != nil {
		return nil, fmt.Errorf("blackout count: %w", err)
	}
	payload = payload[n:]

	events := make([]format.BlackoutEvent, 0, count)
	current := uint64(0)
	for i := uint64(0); i < count; i++ {
		if len(payload) == 0 {
			return nil, fmt.Errorf("%w: truncated blackout event %d", errs.ErrCorruptData, i)
		}
		activity := payload[0]
		payload = payload[1:]

		delta, n, err := encoding.Uvarint(payload)
		if err != nil {
			return nil, fmt.Errorf("blackout event %d: %w", i, err)
		}
		payload = payload[n:]

		current += delta
		events = append(events, format.BlackoutEvent{
			Active: activity != 0,
			Time:   current,
		})
	}

	return events, nil
}
