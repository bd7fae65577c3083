package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"chatbot-checkout/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct tags and folds failures into domain.ErrInvalidArgument.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gt":
			msgs = append(msgs, fe.Field()+" must be greater than "+fe.Param())
		case "max":
			msgs = append(msgs, fe.Field()+" is too long")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, strings.Join(msgs, "; "))
}
