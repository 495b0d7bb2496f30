package payouts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/events"
	"github.com/kmercart/kmercart-api/internal/paging"
	"github.com/kmercart/kmercart-api/internal/users"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCompleted: true, StatusFailed: true},
	StatusProcessing: {StatusCompleted: true, StatusFailed: true},
	StatusCompleted:  {},
	StatusFailed:     {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

type Period struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type BankAccount struct {
	AccountNumber     string `json:"accountNumber"`
	AccountHolderName string `json:"accountHolderName"`
}

type Payout struct {
	ID            string      `json:"_id"`
	VendorID      string      `json:"vendorId"`
	Amount        int64       `json:"amount"`
	Currency      string      `json:"currency"`
	Status        Status      `json:"status"`
	PaymentMethod string      `json:"paymentMethod"`
	TransactionID string      `json:"transactionId,omitempty"`
	Orders        []string    `json:"orders"`
	Period        Period      `json:"period"`
	BankAccount   BankAccount `json:"bankAccount"`
	Notes         string      `json:"notes,omitempty"`
	ProcessedAt   *time.Time  `json:"processedAt,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Earnings is the gross vendor share of delivered orders in a period.
type Earnings struct {
	Gross    int64
	OrderIDs []string
}

type Store interface {
	CreatePayout(ctx context.Context, p *Payout) error
	GetPayout(ctx context.Context, id string) (Payout, error)
	ListPayouts(ctx context.Context, vendorID string, pg paging.Page) ([]Payout, int, error)
	UpdatePayout(ctx context.Context, p Payout) error
	// VendorEarnings sums the vendor's item totals on delivered orders
	// created in [from, to].
	VendorEarnings(ctx context.Context, vendorID string, from, to time.Time) (Earnings, error)
}

type VendorLookup interface {
	GetUser(ctx context.Context, id string) (users.User, error)
}

type Service struct {
	Store       Store
	Vendors     VendorLookup
	Events      events.Publisher
	ServiceName string
	Log         *zap.Logger
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// NetAmount takes the marketplace commission off gross, rounding half away
// from zero.
func NetAmount(gross int64, commissionRate float64) int64 {
	rate := decimal.NewFromFloat(commissionRate)
	return decimal.NewFromInt(gross).Mul(decimal.NewFromInt(1).Sub(rate)).Round(0).IntPart()
}

type RequestInput struct {
	PeriodStart   time.Time
	PeriodEnd     time.Time
	PaymentMethod string
	Notes         string
}

func (s *Service) Request(ctx context.Context, vendorID string, in RequestInput) (Payout, error) {
	if in.PeriodStart.IsZero() || in.PeriodEnd.IsZero() || in.PeriodEnd.Before(in.PeriodStart) {
		return Payout{}, apperr.Fields("invalid payout request", map[string]string{"period": "startDate must be before endDate"})
	}
	u, err := s.Vendors.GetUser(ctx, vendorID)
	if err != nil {
		return Payout{}, err
	}
	vp := u.VendorProfile
	if vp == nil {
		return Payout{}, apperr.Forbidden("complete your vendor profile first")
	}
	if vp.BankAccount == nil || vp.BankAccount.AccountNumber == "" {
		return Payout{}, apperr.Validation("add bank account details to your vendor profile first")
	}
	earn, err := s.Store.VendorEarnings(ctx, vendorID, in.PeriodStart, in.PeriodEnd)
	if err != nil {
		return Payout{}, err
	}
	amount := NetAmount(earn.Gross, vp.CommissionRate)
	if amount <= 0 {
		return Payout{}, apperr.Validation("no delivered sales in this period")
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = "bank_transfer"
	}
	now := s.now()
	p := Payout{
		ID:            uuid.NewString(),
		VendorID:      vendorID,
		Amount:        amount,
		Currency:      "CFA",
		Status:        StatusPending,
		PaymentMethod: method,
		Orders:        earn.OrderIDs,
		Period:        Period{StartDate: in.PeriodStart.UTC(), EndDate: in.PeriodEnd.UTC()},
		BankAccount: BankAccount{
			AccountNumber:     vp.BankAccount.AccountNumber,
			AccountHolderName: vp.BankAccount.AccountHolderName,
		},
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.CreatePayout(ctx, &p); err != nil {
		return Payout{}, err
	}
	if s.Log != nil {
		s.Log.Info("payout requested", zap.String("payout_id", p.ID), zap.String("vendor_id", vendorID), zap.Int64("amount", amount))
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, vendorID string, page, limit int) ([]Payout, paging.Info, error) {
	pg := paging.New(page, limit, 10)
	list, total, err := s.Store.ListPayouts(ctx, vendorID, pg)
	if err != nil {
		return nil, paging.Info{}, err
	}
	return list, pg.Info(total), nil
}

type StatusInput struct {
	Status        Status
	TransactionID string
	Notes         string
}

// UpdateStatus is the admin side of a payout. Completed and failed payouts
// are final and notify the vendor.
func (s *Service) UpdateStatus(ctx context.Context, actor users.Actor, id string, in StatusInput) (Payout, error) {
	if !actor.IsAdmin() {
		return Payout{}, apperr.Forbidden("admin role required")
	}
	if !in.Status.Valid() {
		return Payout{}, apperr.Validation("unknown status %q", in.Status)
	}
	p, err := s.Store.GetPayout(ctx, id)
	if err != nil {
		return Payout{}, err
	}
	if !validNext[p.Status][in.Status] {
		return Payout{}, apperr.Conflict("cannot move payout from %s to %s", p.Status, in.Status)
	}
	now := s.now()
	p.Status = in.Status
	if in.TransactionID != "" {
		p.TransactionID = in.TransactionID
	}
	if in.Notes != "" {
		p.Notes = in.Notes
	}
	if in.Status == StatusCompleted || in.Status == StatusFailed {
		p.ProcessedAt = &now
	}
	p.UpdatedAt = now
	if err := s.Store.UpdatePayout(ctx, p); err != nil {
		return Payout{}, err
	}
	if p.ProcessedAt != nil {
		s.publishProcessed(ctx, p)
	}
	return p, nil
}

func (s *Service) publishProcessed(ctx context.Context, p Payout) {
	if s.Events == nil {
		return
	}
	env, err := events.NewEnvelope(events.EventPayoutProcessed, s.ServiceName, p.VendorID, events.TraceFrom(ctx), events.PayoutProcessedPayload{
		PayoutID:      p.ID,
		VendorID:      p.VendorID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
	})
	if err == nil {
		err = s.Events.Publish(ctx, events.TopicPayoutProcessed, env)
	}
	if err != nil && s.Log != nil {
		s.Log.Warn("publish payout.processed", zap.String("payout_id", p.ID), zap.Error(err))
	}
}
