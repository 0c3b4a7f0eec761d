package speeddaemon

import (
	"log/slog"
	"slices"
	"sort"
	"sync"
)

// A TicketSink accepts tickets for roads it has registered responsibility
// for. Delivery must not block: a sink that cannot take a ticket right now
// reports false and the ticket stays queued. *Conn is the real sink.
type TicketSink interface {
	SendTicket(t *TicketMessage) bool
}

// A Registry is the shared table coordinating every connected camera and
// dispatcher: per-road observation histories, ticketed days, queued tickets,
// and dispatcher registrations.
//
// State is striped by road. Roads are independent, so contention on one road
// never stalls another, and operations spanning several roads always visit
// them in ascending order.
type Registry struct {
	// MarginCentiMPH is the enforcement allowance in hundredths of a mile
	// per hour. 0 is zero tolerance: any average speed strictly above the
	// limit earns a ticket. Set before serving; never changed after.
	MarginCentiMPH uint16

	mu    sync.RWMutex
	roads map[uint16]*roadState
}

func NewRegistry() *Registry {
	return &Registry{roads: make(map[uint16]*roadState)}
}

// roadState is everything known about one road. A road is identified by a
// number from 0 to 65535 and has the same speed limit at every point on the
// road; positions on it are whole numbers of miles from its start.
type roadState struct {
	mu sync.Mutex

	// limit is the road's speed limit in miles per hour. Every camera on a
	// road declares the same limit; should reports ever disagree, the most
	// recently heard one wins.
	limit uint16

	// sightings is each car's observation history, ordered by timestamp.
	sightings map[Car][]Sighting

	// ticketedDays marks, per car, the days already covered by a ticket.
	// Each car earns at most one ticket per day.
	ticketedDays map[Car]map[uint32]struct{}

	// dispatchers are the sinks responsible for this road, in registration
	// order.
	dispatchers []TicketSink

	// pending holds tickets nobody was ready to take, oldest first.
	pending []*TicketMessage
}

func newRoadState() *roadState {
	return &roadState{
		sightings:    make(map[Car][]Sighting),
		ticketedDays: make(map[Car]map[uint32]struct{}),
	}
}

// road returns the state for road n, creating it on first reference.
func (r *Registry) road(n uint16) *roadState {
	r.mu.RLock()
	rs := r.roads[n]
	r.mu.RUnlock()
	if rs != nil {
		return rs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rs = r.roads[n]; rs == nil {
		rs = newRoadState()
		r.roads[n] = rs
	}
	return rs
}

// BindCamera notes a camera's registration, fixing its road's speed limit.
func (r *Registry) BindCamera(c Camera) {
	rs := r.road(c.Road)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.limit = c.Limit
}

// RecordSighting adds one camera observation and issues whatever tickets it
// proves. The new sighting is checked against every other sighting of the
// same car on the same road, so reports arriving out of timestamp order
// still convict.
func (r *Registry) RecordSighting(s Sighting) {
	rs := r.road(s.Road)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.limit = s.Limit
	plate := Car(s.Plate)
	history := rs.sightings[plate]
	i := sort.Search(len(history), func(i int) bool { return history[i].Timestamp > s.Timestamp })
	history = slices.Insert(history, i, s)
	rs.sightings[plate] = history

	for j := range history {
		if j == i {
			continue
		}
		ticket, ok := Evaluate(history[j], s, rs.limit, r.MarginCentiMPH)
		if !ok {
			continue
		}
		rs.issue(plate, ticket)
	}
}

// issue books ticket t unless one already covers either day it touches, then
// queues it for delivery. Both days become ticketed immediately, whether or
// not a dispatcher is connected yet. Caller holds rs.mu.
func (rs *roadState) issue(plate Car, t *TicketMessage) {
	d1, d2 := day(t.Timestamp1), day(t.Timestamp2)
	days := rs.ticketedDays[plate]
	if _, ok := days[d1]; ok {
		return
	}
	if _, ok := days[d2]; ok {
		return
	}
	if days == nil {
		days = make(map[uint32]struct{})
		rs.ticketedDays[plate] = days
	}
	days[d1] = struct{}{}
	days[d2] = struct{}{}

	slog.Info("ticket issued", "plate", t.Plate, "road", t.Road, "speed", t.Speed)
	rs.pending = append(rs.pending, t)
	rs.flush()
}

// flush hands queued tickets, oldest first, to the first dispatcher willing
// to take each one. It stops at the first ticket nobody will take, so
// delivery order is preserved. Caller holds rs.mu.
func (rs *roadState) flush() {
	for len(rs.pending) > 0 {
		if !rs.deliver(rs.pending[0]) {
			return
		}
		rs.pending = rs.pending[1:]
	}
}

func (rs *roadState) deliver(t *TicketMessage) bool {
	for _, d := range rs.dispatchers {
		if d.SendTicket(t) {
			return true
		}
	}
	return false
}

// BindDispatcher registers sink for each listed road and immediately hands
// it the tickets queued there. Duplicate road numbers register once.
func (r *Registry) BindDispatcher(roads []uint16, sink TicketSink) {
	for _, n := range ascending(roads) {
		rs := r.road(n)
		rs.mu.Lock()
		rs.dispatchers = append(rs.dispatchers, sink)
		rs.flush()
		rs.mu.Unlock()
	}
}

// Unbind removes sink's registrations. Tickets decided afterwards queue up
// for the next dispatcher. Cameras need no unbinding: their sightings
// outlive the connection.
func (r *Registry) Unbind(roads []uint16, sink TicketSink) {
	for _, n := range ascending(roads) {
		rs := r.road(n)
		rs.mu.Lock()
		rs.dispatchers = slices.DeleteFunc(rs.dispatchers, func(d TicketSink) bool {
			return d == sink
		})
		rs.mu.Unlock()
	}
}

// ascending returns roads sorted and deduplicated. Multi-road operations
// visit roads in this order so overlapping registrations cannot deadlock.
func ascending(roads []uint16) []uint16 {
	sorted := slices.Clone(roads)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}
