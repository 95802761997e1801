package account

import (
	"time"

	"github.com/uptrace/bun"
)

// Card types accepted at registration.
const (
	CardTypeVisa       = "Visa"
	CardTypeMasterCard = "MasterCard"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             int       `bun:"id,pk,autoincrement" json:"id"`
	Name           string    `bun:"name,notnull" json:"name"`
	Password       string    `bun:"password,notnull" json:"-"` // Never expose password in JSON
	Login          string    `bun:"login,unique,notnull" json:"login"`
	CreditCardNum  string    `bun:"credit_card_num,notnull" json:"credit_card_num"`
	CreditCardType string    `bun:"credit_card_type,notnull" json:"credit_card_type"`
	CreditCardVal  time.Time `bun:"credit_card_val,notnull" json:"credit_card_val"`
}

// RegisterRequest carries the registration payload. CardValidity is epoch
// seconds and becomes the card's expiry date in UTC.
type RegisterRequest struct {
	Name         string `json:"name" validate:"required,min=5,max=50"`
	Password     string `json:"password" validate:"required,min=5,max=50"`
	Login        string `json:"login" validate:"required,min=5,max=50"`
	CardNumber   string `json:"num" validate:"required,len=8,numeric"`
	CardType     string `json:"type" validate:"required,oneof=Visa MasterCard"`
	CardValidity int64  `json:"val" validate:"required,gt=0"`
}
