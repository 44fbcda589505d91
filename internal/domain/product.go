package domain

import (
	"fmt"
	"strings"
	"time"
)

// Sellable is the quantity not held by a reservation.
func (p Product) Sellable() int {
	free := p.Quantity - p.ReservedQuantity
	if free < 0 {
		return 0
	}
	return free
}

// RecomputeStatus derives the lifecycle status from the quantities.
// Inactive products keep their status until explicitly reactivated.
func (p *Product) RecomputeStatus() {
	if p.Status == ProductInactive {
		return
	}
	switch {
	case p.Quantity <= 0 && p.ReservedQuantity <= 0:
		p.Status = ProductSold
	case p.Quantity > 0 && p.ReservedQuantity >= p.Quantity:
		p.Status = ProductReserved
	default:
		p.Status = ProductAvailable
	}
}

// AppendNote adds one audit line to the free-text notes field.
func (p *Product) AppendNote(at time.Time, who string, format string, args ...any) {
	if who == "" {
		who = "system"
	}
	line := fmt.Sprintf("[%s] %s: %s", at.UTC().Format("2006-01-02 15:04"), who, fmt.Sprintf(format, args...))
	if strings.TrimSpace(p.Notes) == "" {
		p.Notes = line
		return
	}
	p.Notes = p.Notes + "\n" + line
}
