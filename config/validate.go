package config

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"meter/internal/errors"

	"github.com/go-playground/validator/v10"
)

var tokenDurationPattern = regexp.MustCompile(`^(\d+)(ms|s|m|h|d)$`)

// ParseTokenDuration parses "<int><unit>" where unit is one of ms, s, m, h or d.
func ParseTokenDuration(value string) (time.Duration, error) {
	match := tokenDurationPattern.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return 0, errors.Errorf("invalid token duration %q, expected <int>(ms|s|m|h|d)", value)
	}

	amount, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid token duration amount %q", match[1])
	}

	var unit time.Duration
	switch match[2] {
	case "ms":
		unit = time.Millisecond
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}

	if amount <= 0 {
		return 0, errors.Errorf("token duration %q must be positive", value)
	}
	if amount > math.MaxInt64/int64(unit) {
		return 0, errors.Errorf("token duration %q is out of range", value)
	}

	return time.Duration(amount) * unit, nil
}

func validateTokenDuration(fl validator.FieldLevel) bool {
	_, err := ParseTokenDuration(fl.Field().String())

	return err == nil
}

// Validate checks struct rules and resolves the token lifetimes.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("tokenduration", validateTokenDuration); err != nil {
		return errors.Wrap(err, "register tokenduration validation")
	}

	if err := validate.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			fields := make([]string, 0, len(validationErrs))
			for _, fieldErr := range validationErrs {
				fields = append(fields, fieldErr.Namespace()+" failed on '"+fieldErr.Tag()+"'")
			}

			return errors.Errorf("invalid configuration: %s", strings.Join(fields, "; "))
		}

		return errors.Wrap(err, "validate configuration")
	}

	accessTTL, err := ParseTokenDuration(cfg.JWT.AccessExpiresIn)
	if err != nil {
		return errors.Wrap(err, "jwt.accessExpiresIn")
	}
	refreshTTL, err := ParseTokenDuration(cfg.JWT.RefreshExpiresIn)
	if err != nil {
		return errors.Wrap(err, "jwt.refreshExpiresIn")
	}
	cfg.JWT.AccessTTL = accessTTL
	cfg.JWT.RefreshTTL = refreshTTL

	return nil
}
