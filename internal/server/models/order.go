// Package models defines server-side data models persisted in the database.
package models

import "time"

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

type TrackingStatus string

const (
	TrackingNotShipped TrackingStatus = "NOT_SHIPPED"
	TrackingShipped    TrackingStatus = "SHIPPED"
	TrackingInTransit  TrackingStatus = "IN_TRANSIT"
	TrackingDelivered  TrackingStatus = "DELIVERED"
)

// ParseTrackingStatus validates s against the known tracking states.
func ParseTrackingStatus(s string) (TrackingStatus, bool) {
	switch ts := TrackingStatus(s); ts {
	case TrackingNotShipped, TrackingShipped, TrackingInTransit, TrackingDelivered:
		return ts, true
	}
	return "", false
}

// Order is a customer order. Money amounts are minor currency units.
type Order struct {
	ID                 int64
	UserID             string
	PaymentStatus      PaymentStatus
	TrackingStatus     TrackingStatus
	ShipmentLocationID *int64
	PromotionCode      *string
	ShippingCost       int64
	OrderDate          time.Time
	Items              []OrderItem
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid
}

// OrderItem is one order line joined with its product.
type OrderItem struct {
	ProductID   int64
	ProductName string
	NetPrice    int64
	VATRate     int64
	Quantity    int64
}
