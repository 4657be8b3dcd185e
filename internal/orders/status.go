package orders

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// DELIVERED is terminal: its stock is consumed for good, so leaving it would
// let a later delete restore stock that was never reserved.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusShipped: true, StatusDelivered: true, StatusCancelled: true},
	StatusConfirmed: {StatusPending: true, StatusShipped: true, StatusDelivered: true, StatusCancelled: true},
	StatusShipped:   {StatusPending: true, StatusConfirmed: true, StatusDelivered: true, StatusCancelled: true},
	StatusCancelled: {StatusPending: true, StatusConfirmed: true, StatusShipped: true, StatusDelivered: true},
	StatusDelivered: {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// HoldsStock reports whether an order in this status still has its quantity
// reserved out of the product's stock.
func (s Status) HoldsStock() bool { return s != StatusDelivered }

func CanTransition(from, to Status) bool {
	if from == to {
		return from.Valid()
	}
	return validNext[from][to]
}
