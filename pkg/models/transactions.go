package models

// TransactionType distinguishes drop-offs from pickups.
type TransactionType string

const (
	TransactionPickup  TransactionType = "Pickup"
	TransactionDropoff TransactionType = "Dropoff"
)

// ConfirmedStatus is the item status a confirmed transaction of this type leaves behind.
func (t TransactionType) ConfirmedStatus() (ItemStatus, bool) {
	switch t {
	case TransactionDropoff:
		return ItemStatusAvailable, true
	case TransactionPickup:
		return ItemStatusUnavailable, true
	default:
		return "", false
	}
}

// Transaction is a scheduled pickup or drop-off at a business.
type Transaction struct {
	ID              string          `json:"id"`
	TransactionType TransactionType `json:"transaction_type"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	QRCodeID        string          `json:"qr_code_id,omitempty"`
	ItemID          string          `json:"item_id,omitempty"`
	ItemName        string          `json:"item_name,omitempty"`
	Name            string          `json:"name,omitempty"`
	CreatedByName   string          `json:"created_by_name,omitempty"`
	CreatedByEmail  string          `json:"created_by_email,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	ScheduledTime   string          `json:"scheduled_time,omitempty"`
}

// ItemRef returns the item the transaction refers to.
func (t Transaction) ItemRef() string {
	if t.QRCodeID != "" {
		return t.QRCodeID
	}
	return t.ItemID
}

// CreatedBy returns the best available creator label.
func (t Transaction) CreatedBy() string {
	switch {
	case t.CreatedByName != "":
		return t.CreatedByName
	case t.CreatedByEmail != "":
		return t.CreatedByEmail
	case t.Name != "":
		return t.Name
	default:
		return "Unknown"
	}
}

// NewTransaction is the create payload for a business transaction.
type NewTransaction struct {
	TransactionType TransactionType `json:"transaction_type"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	QRCodeID        string          `json:"qr_code_id,omitempty"`
	ItemID          string          `json:"item_id,omitempty"`
	ItemName        string          `json:"item_name,omitempty"`
	Name            string          `json:"name,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// Photo is an uploaded image.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DonationItem is the combined create request sent on donation submit.
type DonationItem struct {
	Name          string
	Description   string
	OwnerEmail    string
	Photo         Photo
	QRCodeID      string
	DonorIdentity string
	Date          string
	Time          string
}
