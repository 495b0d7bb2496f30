package users

import (
	"encoding/json"
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// DefaultCommissionRate is the marketplace share of a vendor sale.
const DefaultCommissionRate = 0.15

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

type BankAccount struct {
	AccountNumber     string `json:"accountNumber"`
	RoutingNumber     string `json:"routingNumber,omitempty"`
	AccountHolderName string `json:"accountHolderName"`
}

type VendorProfile struct {
	BusinessName        string       `json:"businessName"`
	BusinessDescription string       `json:"businessDescription,omitempty"`
	BusinessAddress     *Address     `json:"businessAddress,omitempty"`
	TaxID               string       `json:"taxId,omitempty"`
	BankAccount         *BankAccount `json:"bankAccount,omitempty"`
	CommissionRate      float64      `json:"commissionRate"`
	IsApproved          bool         `json:"isApproved"`
	Rating              float64      `json:"rating"`
	TotalSales          int64        `json:"totalSales"`
	JoinedDate          time.Time    `json:"joinedDate"`
}

type User struct {
	ID              string         `json:"_id"`
	Email           string         `json:"email"`
	PasswordHash    string         `json:"-"`
	FirstName       string         `json:"firstName"`
	LastName        string         `json:"lastName"`
	Role            Role           `json:"role"`
	Avatar          string         `json:"avatar,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	IsEmailVerified bool           `json:"isEmailVerified"`
	IsActive        bool           `json:"isActive"`
	VendorProfile   *VendorProfile `json:"vendorProfile,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return json.Marshal(struct {
		plain
		FullName string `json:"fullName"`
	}{plain(u), u.FullName()})
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanActOn reports whether a may read or change the account userID.
func (a Actor) CanActOn(userID string) bool {
	return a.IsAdmin() || a.ID == userID
}

// NormalizeEmail lowercases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Filter struct {
	Role   Role
	Search string
	Page   int
	Limit  int
}

type Stats struct {
	TotalOrders  int `json:"totalOrders"`
	TotalReviews int `json:"totalReviews"`
}
