package routing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rickgao/venue-gateway/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRoutingConfig checks a tenant routing policy.
func ValidateRoutingConfig(cfg model.RoutingConfig) error {
	var errs []string

	if cfg.TenantID == "" {
		errs = append(errs, "tenantId is required")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidRoutingConfig, err)
		}
		for _, fe := range verrs {
			errs = append(errs, describe(fe))
		}
	}

	seen := make(map[string]bool, len(cfg.ExchangePriorities))
	for i, p := range cfg.ExchangePriorities {
		if p.ExchangeID != "" && seen[p.ExchangeID] {
			errs = append(errs, fmt.Sprintf("exchangePriorities[%d]: duplicate exchange %q", i, p.ExchangeID))
		}
		seen[p.ExchangeID] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRoutingConfig, strings.Join(errs, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "RoutingConfig.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		return field + " must be >= 1 when order splitting is enabled"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
