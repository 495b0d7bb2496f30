package orders

import "time"

// Change is one status transition. Stores apply it to the locked order so
// the history append and the status write land together.
type Change struct {
	Status         Status
	Note           string
	TrackingNumber string
	At             time.Time
	// Authorize runs against the locked order before anything is written.
	Authorize func(Order) error
}

// Apply mutates o and reports whether the items' stock has to go back to
// the shelf.
func (ch Change) Apply(o *Order) (restock bool) {
	restock = ch.Status == StatusCancelled && o.Status != StatusCancelled
	o.Status = ch.Status
	o.StatusHistory = append(o.StatusHistory, HistoryEntry{
		Status:    ch.Status,
		Timestamp: ch.At,
		Note:      ch.Note,
	})
	if ch.TrackingNumber != "" {
		o.TrackingNumber = ch.TrackingNumber
	}
	if ch.Status == StatusDelivered {
		at := ch.At
		o.DeliveredAt = &at
	}
	if (ch.Status == StatusCancelled || ch.Status == StatusRefunded) && o.PaymentStatus == PaymentPaid {
		o.PaymentStatus = PaymentRefunded
	}
	o.UpdatedAt = ch.At
	return restock
}
