package models

import "time"

// Role is the account type reported by the backend profile lookup.
type Role string

const (
	RoleTourist  Role = "tourist"
	RoleBusiness Role = "business"
	RoleRetailer Role = "retailer"
)

// Profile is the caller's role and backend profile document.
type Profile struct {
	Role    Role           `json:"role"`
	Profile map[string]any `json:"profile,omitempty"`
}

// TouristRegistration is the payload for a new tourist account.
type TouristRegistration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RetailerRegistration is the payload for a new retailer account.
type RetailerRegistration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
}

// SagaFailure records a confirmation whose status update landed but whose
// transaction delete did not. Operators reconcile these by hand.
type SagaFailure struct {
	ID              string          `json:"id" firestore:"id"`
	TransactionID   string          `json:"transaction_id" firestore:"transaction_id"`
	TransactionType TransactionType `json:"transaction_type" firestore:"transaction_type"`
	Identifier      string          `json:"identifier" firestore:"identifier"`
	ItemRef         string          `json:"item_ref" firestore:"item_ref"`
	ItemStatus      ItemStatus      `json:"item_status" firestore:"item_status"`
	Error           string          `json:"error" firestore:"error"`
	CreatedAt       time.Time       `json:"created_at" firestore:"created_at"`
	Resolved        bool            `json:"resolved" firestore:"resolved"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty" firestore:"resolved_at,omitempty"`
}
