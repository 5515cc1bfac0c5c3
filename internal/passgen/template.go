package passgen

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/loyaltywallet/walletsync/internal/loyalty"
)

var placeholder = regexp.MustCompile(`\{\{\s*([a-z_]+)\.([a-z_]+)\s*\}\}`)

// Sources resolves {{table.field}} placeholders against one customer and
// card. Only the columns listed in NewSources exist; anything else renders
// as the empty string.
type Sources struct {
	values  map[string]string
	numeric map[string]bool
}

// NewSources builds the placeholder table for a snapshot.
func NewSources(s *loyalty.Snapshot) Sources {
	return Sources{
		values: map[string]string{
			"customers.id":                 s.Customer.ID,
			"customers.full_name":          s.Customer.FullName,
			"customers.email":              s.Customer.Email,
			"customers.phone":              s.Customer.Phone,
			"loyalty_cards.card_number":    s.Card.CardNumber,
			"loyalty_cards.customer_id":    s.Card.CustomerID,
			"loyalty_cards.current_points": strconv.Itoa(s.Card.CurrentPoints),
			"loyalty_cards.current_stamps": strconv.Itoa(s.Card.CurrentStamps),
		},
		numeric: map[string]bool{
			"loyalty_cards.current_points": true,
			"loyalty_cards.current_stamps": true,
		},
	}
}

// Render substitutes every placeholder in tmpl.
func (s Sources) Render(tmpl string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		parts := placeholder.FindStringSubmatch(m)
		return s.values[parts[1]+"."+parts[2]]
	})
}

// Value renders a field value. Point and stamp counts come out as numbers:
// either the template is exactly one numeric placeholder, or the field key
// names a count and the rendered text is an integer.
func (s Sources) Value(key, tmpl string) any {
	rendered := s.Render(tmpl)

	if s.isNumericPlaceholder(tmpl) || isCountKey(key) {
		if n, err := strconv.ParseInt(strings.TrimSpace(rendered), 10, 64); err == nil {
			return n
		}
	}
	return rendered
}

func (s Sources) isNumericPlaceholder(tmpl string) bool {
	parts := placeholder.FindStringSubmatch(strings.TrimSpace(tmpl))
	if parts == nil || parts[0] != strings.TrimSpace(tmpl) {
		return false
	}
	return s.numeric[parts[1]+"."+parts[2]]
}

func isCountKey(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "point") || strings.Contains(key, "stamp")
}
