// Package busarbiter implements BusArbiter (§4.1): a simple static-priority
// arbiter granting one of N masters exclusive access to a single backing
// memio.Port. No fairness is attempted — a master that keeps stb asserted
// can hold the bus indefinitely, matching the original's own docstring.
//
// Grounded on original_source/src/bus_arbiter.py.
package busarbiter

import "github.com/GlaireDaggers/Athena-GPU/memio"

// Request is one master port's bus lines for the current tick.
type Request struct {
	Addr uint32
	Data uint32
	We   bool
	Stb  bool
}

// Arbiter grants the bus to the lowest-indexed master asserting Stb while
// idle, and holds that grant until the backing port acks.
type Arbiter struct {
	numPorts int
	active   bool
	grant    int
}

// New returns an idle arbiter serving numPorts masters.
func New(numPorts int) *Arbiter {
	return &Arbiter{numPorts: numPorts}
}

// Tick performs one full cycle: it forwards the currently granted master
// (as of the start of this tick) to mem, and — acting on the same tick's
// ack — both acquires a new grant (if idle) and releases the held grant
// (if the transaction just completed). Returned acks has one entry per
// master; at most one is ever true.
//
// This mirrors original_source/src/bus_arbiter.py's two always blocks: the
// comb_logic forwarding reads _active_grant/_is_active as they stood before
// this tick's clk_logic runs, so a newly granted master only reaches memory
// starting the following tick.
func (a *Arbiter) Tick(reqs []Request, mem memio.Port) (acks []bool, rdata uint32) {
	acks = make([]bool, a.numPorts)
	if a.numPorts == 0 {
		return acks, 0
	}

	grant := a.grant
	forwardStb := a.active && grant < len(reqs) && reqs[grant].Stb

	var fwd Request
	if grant < len(reqs) {
		fwd = reqs[grant]
	}

	rdata, memAck := mem.Tick(fwd.Addr, fwd.We, fwd.Data, forwardStb)
	if memAck && a.active {
		acks[grant] = true
	}

	a.next(reqs, memAck)
	return acks, rdata
}

// next is the clk_logic half: a pure function of the arbiter's current
// state, this tick's requests and this tick's memory ack, committed in
// place since nothing reads a's fields again until the next Tick call.
func (a *Arbiter) next(reqs []Request, memAck bool) {
	if !a.active {
		for i := 0; i < a.numPorts && i < len(reqs); i++ {
			if reqs[i].Stb {
				a.grant = i
				a.active = true
				break
			}
		}
		return
	}
	if memAck {
		a.active = false
	}
}

// Active reports whether a grant is currently held, and to which master.
func (a *Arbiter) Active() (grant int, active bool) {
	return a.grant, a.active
}
