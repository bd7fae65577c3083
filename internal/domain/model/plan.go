package model

import (
	"chatbot-checkout/internal/domain"
)

// PlanCategory groups plans for reporting and savings display.
type PlanCategory string

const (
	PlanCategoryStandard    PlanCategory = "standard"
	PlanCategoryPromotional PlanCategory = "promotional"
	PlanCategoryPremium     PlanCategory = "premium"
)

func (c PlanCategory) Valid() bool {
	switch c {
	case PlanCategoryStandard, PlanCategoryPromotional, PlanCategoryPremium:
		return true
	}
	return false
}

// Plan is an immutable catalog entry. Prices are in minor currency units (cents).
type Plan struct {
	ID            string
	Name          string
	Price         int64
	Currency      string
	Category      PlanCategory
	OriginalPrice int64  // 0 when the plan is not a promotion
	CheckoutURL   string // per-plan hosted checkout page; empty = environment default
	LegacyID      string // older client-side id that still maps here
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// Savings is the promotional discount in minor units.
func (p *Plan) Savings() int64 {
	if p == nil || p.OriginalPrice <= p.Price {
		return 0
	}
	return p.OriginalPrice - p.Price
}

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, price int64, currency string, category PlanCategory, originalPrice int64) (*Plan, error) {
	if id == "" || name == "" || price <= 0 || !category.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if category == PlanCategoryPromotional && originalPrice <= price {
		return nil, domain.ErrInvalidArgument
	}
	if originalPrice < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "USD"
	}
	return &Plan{
		ID:            id,
		Name:          name,
		Price:         price,
		Currency:      currency,
		Category:      category,
		OriginalPrice: originalPrice,
	}, nil
}
