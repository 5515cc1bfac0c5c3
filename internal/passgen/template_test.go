package passgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loyaltywallet/walletsync/internal/loyalty"
	"github.com/loyaltywallet/walletsync/internal/passgen"
)

func snapshot() *loyalty.Snapshot {
	return &loyalty.Snapshot{
		Customer: loyalty.Customer{ID: "cust-1", FullName: "Ada Lovelace", Email: "ada@example.com", BusinessID: "biz-1"},
		Card:     loyalty.Card{CardNumber: "S123", CustomerID: "cust-1", CurrentPoints: 120, CurrentStamps: 7},
	}
}

func TestSources_Render(t *testing.T) {
	src := passgen.NewSources(snapshot())

	tests := []struct {
		tmpl string
		want string
	}{
		{"{{customers.full_name}}", "Ada Lovelace"},
		{"Hi {{ customers.full_name }}, card {{loyalty_cards.card_number}}", "Hi Ada Lovelace, card S123"},
		{"{{loyalty_cards.current_points}} pts", "120 pts"},
		{"{{customers.password}}", ""},
		{"{{unknown.table}}x", "x"},
		{"no placeholders", "no placeholders"},
		{"{{Customers.full_name}}", "{{Customers.full_name}}"},
	}

	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			assert.Equal(t, tt.want, src.Render(tt.tmpl))
		})
	}
}

func TestSources_ValueCoercesCounts(t *testing.T) {
	src := passgen.NewSources(snapshot())

	assert.Equal(t, int64(120), src.Value("balance", "{{loyalty_cards.current_points}}"))
	assert.Equal(t, int64(7), src.Value("stamps", " {{loyalty_cards.current_stamps}} "))
	assert.Equal(t, int64(50), src.Value("bonus_points", "50"))
	assert.Equal(t, "120 pts", src.Value("balance", "{{loyalty_cards.current_points}} pts"))
	assert.Equal(t, "Ada Lovelace", src.Value("name", "{{customers.full_name}}"))
	assert.Equal(t, "many", src.Value("points", "many"))
	assert.Equal(t, "S123", src.Value("card", "{{loyalty_cards.card_number}}"))
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in   string
		want passgen.Position
		ok   bool
	}{
		{"header", passgen.PositionHeader, true},
		{"Primary", passgen.PositionPrimary, true},
		{"secondaryFields", passgen.PositionSecondary, true},
		{" auxiliary ", passgen.PositionAuxiliary, true},
		{"back", passgen.PositionBack, true},
		{"footer", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := passgen.ParsePosition(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "back", passgen.PositionBack.String())
}
