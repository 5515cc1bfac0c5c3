package passgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/loyaltywallet/walletsync/internal/loyalty"
	"github.com/loyaltywallet/walletsync/internal/pkpass"
)

// Position is the slot a field renders in.
type Position int

// Field positions.
const (
	PositionHeader Position = iota + 1
	PositionPrimary
	PositionSecondary
	PositionAuxiliary
	PositionBack
)

var positionNames = map[string]Position{
	"header":    PositionHeader,
	"primary":   PositionPrimary,
	"secondary": PositionSecondary,
	"auxiliary": PositionAuxiliary,
	"back":      PositionBack,
}

// ParsePosition maps a configured position name to a Position. Matching is
// case-insensitive and accepts the "Fields" suffix used by pass.json.
func ParsePosition(s string) (Position, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "fields")
	p, ok := positionNames[s]
	return p, ok
}

func (p Position) String() string {
	for name, v := range positionNames {
		if v == p {
			return name
		}
	}
	return "unknown"
}

// place appends f to the slot of p.
func place(s *pkpass.Structure, p Position, f pkpass.Field) {
	switch p {
	case PositionHeader:
		s.HeaderFields = append(s.HeaderFields, f)
	case PositionPrimary:
		s.PrimaryFields = append(s.PrimaryFields, f)
	case PositionSecondary:
		s.SecondaryFields = append(s.SecondaryFields, f)
	case PositionAuxiliary:
		s.AuxiliaryFields = append(s.AuxiliaryFields, f)
	case PositionBack:
		s.BackFields = append(s.BackFields, f)
	}
}

// layout maps configured fields into slots. Fields with an unknown position
// are returned in skipped.
func layout(cfg *loyalty.PassConfig, src Sources) (structure pkpass.Structure, skipped []string) {
	keys := make(map[string]int)
	uniqueKey := func(key string) string {
		if key == "" {
			key = "field"
		}
		keys[key]++
		if n := keys[key]; n > 1 {
			return key + "_" + strconv.Itoa(n)
		}
		return key
	}

	fields := append(append([]loyalty.FieldConfig{}, cfg.MemberFields...), cfg.CustomFields...)
	for _, fc := range fields {
		pos, ok := ParsePosition(fc.Position)
		if !ok {
			skipped = append(skipped, fmt.Sprintf("%s (%q)", fc.Key, fc.Position))
			continue
		}
		place(&structure, pos, pkpass.Field{
			Key:           uniqueKey(fc.Key),
			Label:         src.Render(fc.Label),
			Value:         src.Value(fc.Key, fc.Value),
			ChangeMessage: fc.ChangeMessage,
		})
	}

	for _, link := range cfg.LinkFields {
		if link.URL == "" {
			continue
		}
		label := src.Render(link.Label)
		if label == "" {
			label = link.URL
		}
		place(&structure, PositionBack, pkpass.Field{
			Key:               uniqueKey(link.Key),
			Label:             label,
			Value:             link.URL,
			AttributedValue:   fmt.Sprintf("<a href=%q>%s</a>", link.URL, label),
			DataDetectorTypes: []string{"PKDataDetectorTypeLink"},
		})
	}

	return structure, skipped
}
