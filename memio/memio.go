// Package memio defines the four-wire bus handshake (§6.3 of the design)
// shared by BusArbiter, BlockCache and the backing memory stand-in, and
// provides a simple word-addressed RAM that implements it.
//
// The backing memory and frame buffer are, per the design, external
// collaborators referenced only by interface — the core never assumes a
// particular memory technology. This package is that interface plus one
// concrete implementation good enough to drive the core's tests and the
// demo CLI.
package memio

import "fmt"

// Port is one side of the bus handshake described in §6.3: stb requests a
// transaction, ack ends it zero or more ticks later with rdata valid.
// Writes carry we+wdata; reads ignore them. A slave may ack combinationally
// (same tick) or after internal latency — callers must not assume either.
type Port interface {
	// Tick advances the slave by one clock and returns the result of the
	// request asserted this tick (if any). Called once per simulator tick,
	// after the combinational propagation pass has settled addr/we/wdata/stb.
	Tick(addr uint32, we bool, wdata uint32, stb bool) (rdata uint32, ack bool)
}

// RAM is a flat, word-addressed (32-bit) memory with a fixed read/write
// latency in ticks. Latency 0 acks combinationally in the same tick a
// request is asserted, matching original_source/src/mem.py's RAM (whose
// @always_comb read has no registered delay). A non-zero latency exercises
// BlockCache's multi-cycle FILL states the way a real SRAM/DRAM would.
type RAM struct {
	words   []uint32
	latency int

	pending    bool
	pendingEnd uint64
	pendingAdr uint32
	pendingWe  bool
	pendingDat uint32

	tick uint64
}

// NewRAM allocates a RAM of the given word count with the given per-access
// latency (in ticks; 0 = combinational ack).
func NewRAM(words int, latency int) *RAM {
	if latency < 0 {
		latency = 0
	}
	return &RAM{words: make([]uint32, words), latency: latency}
}

// Load populates consecutive words starting at addr, for test/demo setup.
func (r *RAM) Load(addr uint32, data []uint32) {
	copy(r.words[addr:], data)
}

func (r *RAM) Tick(addr uint32, we bool, wdata uint32, stb bool) (rdata uint32, ack bool) {
	r.tick++

	if r.pending {
		if r.tick >= r.pendingEnd {
			r.pending = false
			return r.complete(r.pendingAdr, r.pendingWe, r.pendingDat)
		}
		return 0, false
	}

	if !stb {
		return 0, false
	}

	if r.latency == 0 {
		return r.complete(addr, we, wdata)
	}

	r.pending = true
	r.pendingEnd = r.tick + uint64(r.latency)
	r.pendingAdr = addr
	r.pendingWe = we
	r.pendingDat = wdata
	return 0, false
}

func (r *RAM) complete(addr uint32, we bool, wdata uint32) (uint32, bool) {
	idx := int(addr) % len(r.words)
	if we {
		r.words[idx] = wdata
		return 0, true
	}
	return r.words[idx], true
}

// Watchdog wraps a Port and turns "never acks" into an error after maxTicks
// ticks of a held request, per §7's note that "a slave never returning ack
// stalls the fill ... a simulator may impose a watchdog."
type Watchdog struct {
	Port     Port
	MaxTicks int

	waiting int
}

// ErrBusTimeout is returned by Tick when a request has been outstanding for
// more than MaxTicks ticks without an ack.
type ErrBusTimeout struct {
	Addr  uint32
	Ticks int
}

func (e *ErrBusTimeout) Error() string {
	return fmt.Sprintf("memio: bus request to 0x%08x timed out after %d ticks", e.Addr, e.Ticks)
}

// Tick behaves like Port.Tick but panics-free callers should check the
// returned error; on timeout ack is forced false and err is non-nil.
func (w *Watchdog) Tick(addr uint32, we bool, wdata uint32, stb bool) (rdata uint32, ack bool, err error) {
	if !stb {
		w.waiting = 0
		return 0, false, nil
	}
	rdata, ack = w.Port.Tick(addr, we, wdata, stb)
	if ack {
		w.waiting = 0
		return rdata, ack, nil
	}
	w.waiting++
	if w.MaxTicks > 0 && w.waiting > w.MaxTicks {
		return 0, false, &ErrBusTimeout{Addr: addr, Ticks: w.waiting}
	}
	return 0, false, nil
}
