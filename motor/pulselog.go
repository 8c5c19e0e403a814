package motor

import "time"

// PulseLogCapacity is the number of edge timestamps kept for windowing.
const PulseLogCapacity = 1000

// PulseLog is a fixed ring of the most recent edge ticks. It has a single writer and is
// only read by the same sampling context.
type PulseLog struct {
	times [PulseLogCapacity]uint32
	head  int
	count int
	total uint64
}

func (p *PulseLog) Reset() {
	p.head = 0
	p.count = 0
	p.total = 0
	for i := range p.times {
		p.times[i] = 0
	}
}

// Record appends an edge tick, overwriting the oldest entry once full.
func (p *PulseLog) Record(tick uint32) {
	p.times[p.head] = tick
	p.head = (p.head + 1) % PulseLogCapacity
	if p.count < PulseLogCapacity {
		p.count++
	}
	p.total++
}

// Len returns how many entries are valid for windowing.
func (p *PulseLog) Len() int {
	return p.count
}

// Total returns the number of edges ever recorded.
func (p *PulseLog) Total() uint64 {
	return p.total
}

// CountWithin returns the number of logged edges no older than window at now.
func (p *PulseLog) CountWithin(now uint32, window time.Duration) int {
	limit := durationToTicks(window)
	edges := 0
	for i := 0; i < p.count; i++ {
		idx := (p.head + PulseLogCapacity - p.count + i) % PulseLogCapacity
		if TickAge(now, p.times[idx]) <= limit {
			edges++
		}
	}
	return edges
}

// Estimate converts the edges in the trailing window into revolutions per minute.
func (p *PulseLog) Estimate(now uint32, window time.Duration, blades int) float64 {
	if p.count == 0 || blades < 1 || window <= 0 {
		return 0
	}

	edges := p.CountWithin(now, window)
	return (float64(edges) / float64(blades)) * (60.0 / window.Seconds())
}
