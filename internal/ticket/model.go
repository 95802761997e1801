package ticket

import (
	"regexp"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Ticket validity tiers in minutes. tierOrder is also the issuing priority:
// batches materialize 15-minute tickets first, and the loyalty bonus uses the
// first tier actually present in this order.
const (
	Tier15 = 15
	Tier30 = 30
	Tier60 = 60
)

var tierOrder = [3]int{Tier15, Tier30, Tier60}

// BonusThreshold is the batch size at which one extra ticket is granted.
const BonusThreshold = 10

// Six octets, colon separated, uppercase hex.
var busMacPattern = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)

// NormalizeBusMac upper-cases a bus hardware address and checks the
// six-octet colon-hex format.
func NormalizeBusMac(mac string) (string, error) {
	normalized := strings.ToUpper(mac)
	if !busMacPattern.MatchString(normalized) {
		return "", ErrInvalidBusAddress
	}
	return normalized, nil
}

// Ticket is a single ride authorization. BusMacAddress and ValidatedAt are
// either both null (unused) or both set (validated); no other persisted state
// is legal.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID            string     `bun:"id,pk" json:"id"`
	UserID        int        `bun:"user_id,notnull" json:"user_id"`
	ValidityTime  int        `bun:"validity_time,notnull" json:"validity_time"`
	BusMacAddress *string    `bun:"bus_mac_address" json:"bus_mac_address"`
	ValidatedAt   *time.Time `bun:"validated_at" json:"validated_at"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

func (t *Ticket) Validated() bool {
	return t.ValidatedAt != nil
}

// TierCounts is the number of tickets requested per validity tier.
type TierCounts struct {
	Tier15 int
	Tier30 int
	Tier60 int
}

func (c TierCounts) Total() int {
	return c.Tier15 + c.Tier30 + c.Tier60
}

func (c TierCounts) forTier(tier int) int {
	switch tier {
	case Tier15:
		return c.Tier15
	case Tier30:
		return c.Tier30
	case Tier60:
		return c.Tier60
	}
	return 0
}

// PurchaseRequest is the purchase payload. Counts are pointers so a missing
// field is rejected rather than silently treated as zero.
type PurchaseRequest struct {
	Login  string `json:"login" validate:"required"`
	Tier15 *int   `json:"num_tickets15m" validate:"required,gte=0"`
	Tier30 *int   `json:"num_tickets30m" validate:"required,gte=0"`
	Tier60 *int   `json:"num_tickets60m" validate:"required,gte=0"`
}

func (r PurchaseRequest) Counts() TierCounts {
	return TierCounts{
		Tier15: *r.Tier15,
		Tier30: *r.Tier30,
		Tier60: *r.Tier60,
	}
}

// ValidateRequest is the on-board validation payload.
type ValidateRequest struct {
	Login         string `json:"login" validate:"required"`
	TicketID      string `json:"ticket_id" validate:"required"`
	BusMacAddress string `json:"mac_address" validate:"required"`
}

// PurchaseResult returns the user's full unvalidated set after a purchase.
// Extra reports whether the batch included a loyalty bonus ticket.
type PurchaseResult struct {
	Tickets []Ticket `json:"tickets"`
	Extra   bool     `json:"extra"`
}
