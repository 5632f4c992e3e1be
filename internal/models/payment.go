package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const PaymentCompleted = "COMPLETED"

type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID                   int64           `json:"payment_id" bun:"id,pk,autoincrement"`
	UserID               int64           `json:"user_id" bun:"user_id,notnull"`
	EventID              int64           `json:"event_id" bun:"event_id,notnull"`
	Amount               decimal.Decimal `json:"amount" bun:"amount,type:decimal(12,2),notnull"`
	PaymentMethod        string          `json:"payment_method" bun:"payment_method,notnull"`
	PaymentStatus        string          `json:"payment_status" bun:"payment_status,notnull"`
	TransactionReference string          `json:"transaction_reference" bun:"transaction_reference,notnull,unique"`
	PaymentDate          time.Time       `json:"payment_date" bun:"payment_date,notnull"`
}
