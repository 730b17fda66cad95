package domain

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusPacked     Status = "Packed"
	StatusDelivered  Status = "Delivered"
	StatusRejected   Status = "Rejected"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusRejected: true},
	StatusProcessing: {StatusPacked: true},
	StatusPacked:     {StatusDelivered: true},
	StatusDelivered:  {},
	StatusRejected:   {},
}

// CanTransition reports whether from -> to is an edge of the fulfillment graph.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Requestable reports whether a farmer may ask for s. Pending is only ever
// set at placement.
func (s Status) Requestable() bool {
	switch s {
	case StatusProcessing, StatusRejected, StatusPacked, StatusDelivered:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusRejected
}
