package speeddaemon

// A Camera represents a speed camera.
//
// Each camera is on a specific road, at a specific location, and has a specific speed limit.
// Each camera provides this information when it connects to the server.
// Cameras report each number plate that they observe, along with the timestamp that they observed it.
// Timestamps are exactly the same as [Unix timestamps] (counting seconds since 1st of January 1970), except that they are unsigned.
//
// [Unix timestamps]: https://en.wikipedia.org/wiki/Unix_time
type Camera struct {
	Road  uint16
	Mile  uint16
	Limit uint16
}

// A TicketDispatcher is responsible for some number of roads.
//
// When the server finds that a car was detected at 2 points on the same road with an average speed in excess of the
// speed limit (speed = distance / time), it will find the responsible ticket dispatcher and send it a ticket for the
// offending car, so that the ticket dispatcher can perform the necessary legal rituals.
type TicketDispatcher struct {
	Roads []uint16
}

// A Car has a specific number plate represented as an uppercase alphanumeric string.
type Car string

// A Sighting is a single camera observation: one plate seen at one point on
// one road at one moment. The camera's speed limit travels with the sighting
// so the road's limit can be kept current as reports arrive.
type Sighting struct {
	Plate     string
	Road      uint16
	Mile      uint16
	Timestamp uint32
	Limit     uint16
}
