package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentInReview  PaymentStatus = "in_review"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// OpenPaymentStatuses are the statuses of a payment that is not yet resolved.
var OpenPaymentStatuses = []PaymentStatus{PaymentPending, PaymentInReview}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentInReview, PaymentCompleted, PaymentFailed},
	PaymentInReview: {PaymentCompleted, PaymentFailed},
}

func (s PaymentStatus) String() string { return string(s) }

// IsOpen reports whether the payment is pending or in review.
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentPending || s == PaymentInReview
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCash         PaymentMethod = "cash"
	MethodWallet       PaymentMethod = "wallet"
)

// Payment is attached to an order and resolved independently of it.
type Payment struct {
	ID                  string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID             string          `json:"order_id" gorm:"type:varchar(36);not null;index"`
	Method              PaymentMethod   `json:"method" gorm:"type:varchar(20);not null"`
	Status              PaymentStatus   `json:"status" gorm:"type:varchar(20);not null;index"`
	Amount              decimal.Decimal `json:"amount" gorm:"type:decimal(10,2);not null"`
	ProofFile           string          `json:"proof_file,omitempty" gorm:"type:varchar(500)"`
	ProofURL            string          `json:"proof_url,omitempty" gorm:"type:varchar(500)"`
	ExternalID          string          `json:"external_id,omitempty" gorm:"type:varchar(255)"`
	ExternalRedirectURL string          `json:"external_redirect_url,omitempty" gorm:"type:varchar(500)"`
	Metadata            map[string]any  `json:"metadata" gorm:"serializer:json"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// HasProof reports whether a proof file or URL is attached.
func (p *Payment) HasProof() bool {
	return p.ProofFile != "" || p.ProofURL != ""
}

// PaymentFilter narrows payment listings. UserID limits the result to
// payments of that user's orders.
type PaymentFilter struct {
	Status  PaymentStatus
	OrderID string
	UserID  string
}
