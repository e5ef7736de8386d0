package model

import "time"

// OrderKind is the spec's Instruction: how the order should be matched.
type OrderKind int

const (
	Market OrderKind = iota
	Limit
	ImmediateOrCancel
	FillOrKill
	GoodTilCancelled
)

// OrderRole is set at insertion time (internal/ledger) by comparing against
// the current best opposite price: the resting side is the Maker, the
// crossing side is the Taker.
type OrderRole int

const (
	Maker OrderRole = iota
	Taker
)

// OrderStatus discriminates the tagged-variant Order below (REDESIGN FLAGS
// §9: one struct with shared header fields instead of a generic Order<S>).
type OrderStatus int

const (
	StatusRequestOpen OrderStatus = iota
	StatusRequestCancel
	StatusRealPending
	StatusOpen
	StatusPartialFill
	StatusFullyFill
	StatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case StatusRequestOpen:
		return "RequestOpen"
	case StatusRequestCancel:
		return "RequestCancel"
	case StatusRealPending:
		return "RealPending"
	case StatusOpen:
		return "Open"
	case StatusPartialFill:
		return "PartialFill"
	case StatusFullyFill:
		return "FullyFill"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// OrderID is the exchange-assigned monotone identifier: spec §6 composes it
// as (timestamp_ms, machine_id, counter). See internal/ledger for the bit
// layout and assignment.
type OrderID uint64

// ClientOrderID is a free-form, client-supplied tag.
type ClientOrderID string

// RequestOpen is the client-submitted intent to open an order.
type RequestOpen struct {
	Instrument Instrument
	Side       Side
	Kind       OrderKind
	Price      float64
	Size       float64
	ReduceOnly bool
	CID        ClientOrderID
}

// RequestCancel is the client-submitted intent to cancel a resting order.
type RequestCancel struct {
	ID OrderID
}

// Order is the tagged-variant order record. Which fields are meaningful
// depends on Status: a RequestOpen/RequestCancel has no ID yet; Open/
// PartialFill/FullyFill/Cancelled all carry one. FilledQuantity only grows
// monotonically, never exceeding Size (spec §3 invariant).
type Order struct {
	ID         OrderID
	Exchange   string
	Instrument Instrument
	Timestamp  time.Time
	CID        ClientOrderID
	Side       Side
	Status     OrderStatus

	Kind           OrderKind
	Price          float64
	Size           float64
	FilledQuantity float64
	ReduceOnly     bool
	Role           OrderRole
}

// RemainingQuantity is Size - FilledQuantity.
func (o *Order) RemainingQuantity() float64 {
	return o.Size - o.FilledQuantity
}

// IsFullyFilled reports whether the order has no remaining quantity.
func (o *Order) IsFullyFilled() bool {
	return o.RemainingQuantity() <= epsilon
}
