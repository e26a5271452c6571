package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
)

// MinQueryLength is the shortest search text that is sent to the geocoder.
const MinQueryLength = 2

// ErrQueryTooShort is returned when the trimmed query has fewer than minLen runes.
var ErrQueryTooShort = errors.New("query too short")

// ErrQueryTooLong is returned when the query exceeds maxLen runes.
var ErrQueryTooLong = errors.New("query too long")

// ErrQueryInvalidChars is returned when the query contains disallowed characters.
var ErrQueryInvalidChars = errors.New("query contains invalid characters")

// ErrInvalidPlace wraps struct-level validation failures for a Place.
var ErrInvalidPlace = errors.New("invalid place")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateQuery trims the input, enforces length bounds (in runes) and restricts to
// letters, digits, space, comma, hyphen, period and apostrophe.
// Returns the trimmed string.
func ValidateQuery(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n < minLen || n == 0 {
		return "", ErrQueryTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if !isAllowedQueryRune(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

func isAllowedQueryRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// ValidatePlace checks name presence and coordinate ranges.
func ValidatePlace(p models.Place) error {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return fmt.Errorf("%w: coordinates are not numbers", ErrInvalidPlace)
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", ErrInvalidPlace, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidPlace, err)
	}
	return nil
}
