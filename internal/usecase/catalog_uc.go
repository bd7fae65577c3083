// File: internal/usecase/catalog_uc.go
package usecase

import (
	"fmt"
	"sort"

	"chatbot-checkout/internal/config"
	"chatbot-checkout/internal/domain"
	"chatbot-checkout/internal/domain/model"
)

var _ CatalogUseCase = (*catalogUC)(nil)

// CatalogUseCase answers price and checkout questions about the fixed plan table.
type CatalogUseCase interface {
	// GetPlan resolves id (or a legacy alias); domain.ErrNotFound otherwise.
	GetPlan(id string) (*model.Plan, error)
	// PriceFor returns the plan price, or the fallback price for unknown ids.
	PriceFor(id string) int64
	// CheckoutDestination returns the plan's hosted checkout link, or the
	// environment's base checkout URL for unknown ids or plans without a link.
	CheckoutDestination(id string) string
	DefaultPlanID() string
	List() []*model.Plan
}

type CatalogOptions struct {
	DefaultPlanID   string
	FallbackPrice   int64
	CheckoutBaseURL string
}

type catalogUC struct {
	plans   map[string]*model.Plan
	aliases map[string]string
	order   []string
	opts    CatalogOptions
}

// NewCatalogUseCase indexes plans by id and legacy id. Duplicate ids are rejected.
func NewCatalogUseCase(plans []*model.Plan, opts CatalogOptions) (*catalogUC, error) {
	c := &catalogUC{
		plans:   make(map[string]*model.Plan, len(plans)),
		aliases: make(map[string]string),
		opts:    opts,
	}
	for _, p := range plans {
		if p.IsZero() {
			return nil, fmt.Errorf("%w: plan without id", domain.ErrInvalidArgument)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", domain.ErrAlreadyExists, p.ID)
		}
		cp := *p
		c.plans[p.ID] = &cp
		c.order = append(c.order, p.ID)
		if p.LegacyID != "" && p.LegacyID != p.ID {
			c.aliases[p.LegacyID] = p.ID
		}
	}
	if c.opts.DefaultPlanID == "" && len(c.order) > 0 {
		c.opts.DefaultPlanID = c.order[0]
	}
	return c, nil
}

// PlansFromConfig builds validated plans, attaching per-plan checkout links
// for the active payment environment.
func PlansFromConfig(cfg config.CatalogConfig, links map[string]string) ([]*model.Plan, error) {
	out := make([]*model.Plan, 0, len(cfg.Plans))
	for _, pc := range cfg.Plans {
		p, err := model.NewPlan(pc.ID, pc.Name, pc.Price, pc.Currency, model.PlanCategory(pc.Category), pc.OriginalPrice)
		if err != nil {
			return nil, fmt.Errorf("plan %q: %w", pc.ID, err)
		}
		p.LegacyID = pc.LegacyID
		p.CheckoutURL = links[pc.ID]
		out = append(out, p)
	}
	return out, nil
}

func (c *catalogUC) lookup(id string) (*model.Plan, bool) {
	if p, ok := c.plans[id]; ok {
		return p, true
	}
	if canonical, ok := c.aliases[id]; ok {
		return c.plans[canonical], true
	}
	return nil, false
}

func (c *catalogUC) GetPlan(id string) (*model.Plan, error) {
	p, ok := c.lookup(id)
	if !ok {
		return nil, fmt.Errorf("plan %q: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (c *catalogUC) PriceFor(id string) int64 {
	if p, ok := c.lookup(id); ok {
		return p.Price
	}
	return c.opts.FallbackPrice
}

func (c *catalogUC) CheckoutDestination(id string) string {
	if p, ok := c.lookup(id); ok && p.CheckoutURL != "" {
		return p.CheckoutURL
	}
	return c.opts.CheckoutBaseURL
}

func (c *catalogUC) DefaultPlanID() string { return c.opts.DefaultPlanID }

// List returns plans ordered by price, cheapest first.
func (c *catalogUC) List() []*model.Plan {
	out := make([]*model.Plan, 0, len(c.order))
	for _, id := range c.order {
		cp := *c.plans[id]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}
