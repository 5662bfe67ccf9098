package writer

import (
	"math"

	"github.com/arloliu/wavefst/format"
)

// frameState tracks the last known value of every handle so each flushed
// block can carry the signal state at its begin time.
//
// committed holds the state as of the previous flush; live additionally
// includes the changes buffered since then.
type frameState struct {
	committed []format.SignalValue
	live      []format.SignalValue
}

func (fs *frameState) register(geom format.Geometry) {
	var initial format.SignalValue
	switch geom.Kind {
	case format.GeomFixed:
		if geom.Width == 1 {
			initial = format.BitValue('x')
		} else {
			fill := make([]byte, geom.Width)
			for i := range fill {
				fill[i] = 'x'
			}
			initial = format.VectorValue(fill)
		}
	case format.GeomReal:
		initial = format.RealValue(math.NaN())
	case format.GeomVariable:
		// No frame entry; the zero value stands in.
	}

	fs.committed = append(fs.committed, initial)
	fs.live = append(fs.live, initial.Clone())
}

// cloneFrom seeds a new alias handle with the canonical handle's value.
func (fs *frameState) cloneFrom(canonical, alias format.Handle) {
	fs.committed[alias-1] = fs.committed[canonical-1].Clone()
	fs.live[alias-1] = fs.live[canonical-1].Clone()
}

func (fs *frameState) update(handle format.Handle, value format.SignalValue) {
	fs.live[handle-1] = value.Clone()
}

// commit snapshots the live state after a flush so the next block's frame
// reflects everything emitted so far.
func (fs *frameState) commit() {
	for i := range fs.live {
		fs.committed[i] = fs.live[i].Clone()
	}
}

// snapshot returns the state at the coming block's begin time.
func (fs *frameState) snapshot() []format.SignalValue {
	return fs.committed
}
