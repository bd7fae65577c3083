//go:build !integration

package usecase_test

import (
	"errors"
	"testing"

	"chatbot-checkout/internal/config"
	"chatbot-checkout/internal/domain"
	"chatbot-checkout/internal/domain/model"
	"chatbot-checkout/internal/usecase"
)

func TestCatalogUseCase_GetPlan(t *testing.T) {
	c := newTestCatalog()

	t.Run("known plan", func(t *testing.T) {
		p, err := c.GetPlan("first_month_special")
		if err != nil {
			t.Fatalf("GetPlan: %v", err)
		}
		if p.Price != 14700 || p.OriginalPrice != 29700 || p.Category != model.PlanCategoryPromotional {
			t.Errorf("unexpected plan %+v", p)
		}
		if p.Savings() != 15000 {
			t.Errorf("savings = %d", p.Savings())
		}
	})

	t.Run("legacy alias", func(t *testing.T) {
		p, err := c.GetPlan("basic")
		if err != nil || p.ID != "standard_monthly" {
			t.Fatalf("alias resolved to %+v, err %v", p, err)
		}
	})

	t.Run("unknown plan", func(t *testing.T) {
		if _, err := c.GetPlan("enterprise"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("returned plan is a copy", func(t *testing.T) {
		p, _ := c.GetPlan("standard_monthly")
		p.Price = 1
		again, _ := c.GetPlan("standard_monthly")
		if again.Price != 29700 {
			t.Fatalf("catalog mutated through returned plan")
		}
	})
}

func TestCatalogUseCase_FallbacksForUnknownPlans(t *testing.T) {
	c := newTestCatalog()

	if got := c.PriceFor("standard_monthly"); got != 29700 {
		t.Errorf("PriceFor(standard) = %d", got)
	}
	if got := c.PriceFor("no-such-plan"); got != 29700 {
		t.Errorf("PriceFor(unknown) = %d, want fallback 29700", got)
	}
	if got := c.CheckoutDestination("premium_plan"); got != "https://checkout.example.com/premium" {
		t.Errorf("premium destination = %q", got)
	}
	if got := c.CheckoutDestination("standard_monthly"); got != testCheckoutBase {
		t.Errorf("plan without link should use base, got %q", got)
	}
	if got := c.CheckoutDestination("no-such-plan"); got != testCheckoutBase {
		t.Errorf("unknown destination = %q", got)
	}
}

func TestCatalogUseCase_ListOrderedByPrice(t *testing.T) {
	plans := newTestCatalog().List()
	if len(plans) != 4 {
		t.Fatalf("len = %d", len(plans))
	}
	for i := 1; i < len(plans); i++ {
		if plans[i-1].Price > plans[i].Price {
			t.Fatalf("not sorted: %s (%d) before %s (%d)", plans[i-1].ID, plans[i-1].Price, plans[i].ID, plans[i].Price)
		}
	}
}

func TestPlansFromConfig_RejectsInvalidPromotion(t *testing.T) {
	_, err := usecase.PlansFromConfig(config.CatalogConfig{Plans: []config.PlanConfig{
		{ID: "bad", Name: "Bad", Price: 100, Category: "promotional", OriginalPrice: 50},
	}}, nil)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestNewCatalogUseCase_RejectsDuplicates(t *testing.T) {
	p := &model.Plan{ID: "a", Name: "A", Price: 1, Category: model.PlanCategoryStandard}
	if _, err := usecase.NewCatalogUseCase([]*model.Plan{p, p}, usecase.CatalogOptions{}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("err = %v", err)
	}
}
