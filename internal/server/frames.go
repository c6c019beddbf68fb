package server

import (
	"bytes"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
	"github.com/zeusync/orbitfleet/internal/fleet"
	"github.com/zeusync/orbitfleet/pkg/api"
	"github.com/zeusync/orbitfleet/pkg/generic"
)

var _ fleet.ViewSink = (*FrameSink)(nil)

// Broadcaster delivers an encoded message to every connected client.
type Broadcaster interface {
	Broadcast(data []byte)
}

// FrameSink turns view notifications into api frames. The view callbacks and
// Flush run on the simulation goroutine; LastFrame may be called from any
// goroutine.
type FrameSink struct {
	interval time.Duration
	logger   log.Log

	ships   map[string]*api.Ship
	order   []string
	removed []string
	pending time.Duration
	seq     uint64
	digest  uint64
	bufs    *generic.Pool[*bytes.Buffer]

	mu   sync.RWMutex
	out  Broadcaster
	last []byte
}

// NewFrameSink broadcasts at most hz frames per second to out. hz <= 0
// broadcasts after every tick. out may be nil and attached later.
func NewFrameSink(out Broadcaster, hz int, logger log.Log) *FrameSink {
	if logger == nil {
		logger = log.NewNop()
	}
	var interval time.Duration
	if hz > 0 {
		interval = time.Second / time.Duration(hz)
	}
	return &FrameSink{
		out:      out,
		interval: interval,
		logger:   logger,
		ships:    make(map[string]*api.Ship, fleet.MaxShips),
		bufs:     generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset),
	}
}

func (f *FrameSink) OnShipCreated(id string, energyPercent float64) {
	f.removed = slices.DeleteFunc(f.removed, func(r string) bool { return r == id })
	if _, ok := f.ships[id]; !ok {
		f.order = append(f.order, id)
	}
	f.ships[id] = &api.Ship{ID: id, Energy: energyPercent, Label: fleet.FormatEnergy(energyPercent)}
}

func (f *FrameSink) OnShipDestroyed(id string) {
	if _, ok := f.ships[id]; !ok {
		return
	}
	delete(f.ships, id)
	for i, o := range f.order {
		if o == id {
			f.order = append(f.order[:i:i], f.order[i+1:]...)
			break
		}
	}
	f.removed = append(f.removed, id)
}

func (f *FrameSink) OnShipUpdated(id string, rotationDegrees, energyPercent float64) {
	s, ok := f.ships[id]
	if !ok {
		return
	}
	s.Rotation = rotationDegrees
	s.Energy = energyPercent
	s.Label = fleet.FormatEnergy(energyPercent)
}

// Flush is a tick hook. Once the broadcast interval has passed it encodes
// the fleet and broadcasts it, unless no ship changed or left since the last
// frame.
func (f *FrameSink) Flush(elapsed time.Duration) {
	f.pending += elapsed
	if f.pending < f.interval {
		return
	}
	f.pending = 0

	frame := api.Frame{Ships: make([]api.Ship, 0, len(f.order)), Removed: f.removed}
	for _, id := range f.order {
		frame.Ships = append(frame.Ships, *f.ships[id])
	}

	buf := f.bufs.Get()
	defer f.bufs.Put(buf)

	if err := json.NewEncoder(buf).Encode(frame.Ships); err != nil {
		f.logger.Error("encode frame", log.Error(err))
		return
	}
	digest := xxhash.Sum64(buf.Bytes())
	if f.seq > 0 && digest == f.digest && len(f.removed) == 0 {
		return
	}
	f.digest = digest
	f.seq++
	frame.Seq = f.seq
	f.removed = nil

	buf.Reset()
	if err := json.NewEncoder(buf).Encode(api.Message{Type: api.TypeFrame, Frame: &frame}); err != nil {
		f.logger.Error("encode frame", log.Error(err))
		return
	}
	data := bytes.Clone(buf.Bytes())

	f.mu.Lock()
	f.last = data
	out := f.out
	f.mu.Unlock()

	if out != nil {
		out.Broadcast(data)
	}
}

// Attach sets the broadcaster frames are delivered to.
func (f *FrameSink) Attach(out Broadcaster) {
	f.mu.Lock()
	f.out = out
	f.mu.Unlock()
}

// LastFrame returns the most recent encoded frame, or nil before the first.
func (f *FrameSink) LastFrame() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.last
}
