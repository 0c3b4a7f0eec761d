package speeddaemon

import "math"

// secondsPerDay converts timestamps to calendar days for ticket bookkeeping.
const secondsPerDay = 86400

// day returns the calendar day a timestamp falls on. Day 0 covers timestamps
// 0 through 86399, day 1 the next 86400 seconds, and so on.
func day(timestamp uint32) uint32 {
	return timestamp / secondsPerDay
}

// Evaluate decides whether a pair of sightings of the same car on the same
// road proves the car exceeded limit.
//
// The average speed between the two observation points is computed in exact
// integer arithmetic, in hundredths of a mile per hour, so a car travelling
// at precisely the limit is never ticketed. margin widens the allowance: a
// margin of 50 forgives anything up to 0.5 mph over the limit. Two sightings
// with the same timestamp carry no speed information and never produce a
// ticket.
//
// The returned ticket always states the earlier observation first, whatever
// order the pair was given in.
func Evaluate(a, b Sighting, limit, margin uint16) (*TicketMessage, bool) {
	if b.Timestamp < a.Timestamp {
		a, b = b, a
	}
	elapsed := uint64(b.Timestamp - a.Timestamp)
	if elapsed == 0 {
		return nil, false
	}

	var distance uint64
	if a.Mile > b.Mile {
		distance = uint64(a.Mile - b.Mile)
	} else {
		distance = uint64(b.Mile - a.Mile)
	}

	// distance / elapsed is miles per second; scale by 3600 for miles per
	// hour and by 100 for the protocol's fixed-point unit. Comparing the
	// cross-multiplied forms keeps everything integral.
	if distance*360000 <= (uint64(limit)*100+uint64(margin))*elapsed {
		return nil, false
	}

	speed := (distance*360000 + elapsed/2) / elapsed
	if speed > math.MaxUint16 {
		// Wire field is 16 bits. Nothing on the road network moves this
		// fast, but a hostile client can claim to.
		speed = math.MaxUint16
	}

	return &TicketMessage{
		Plate:      a.Plate,
		Road:       a.Road,
		Mile1:      a.Mile,
		Timestamp1: a.Timestamp,
		Mile2:      b.Mile,
		Timestamp2: b.Timestamp,
		Speed:      uint16(speed),
	}, true
}
