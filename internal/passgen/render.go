package passgen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/loyaltywallet/walletsync/internal/loyalty"
	"github.com/loyaltywallet/walletsync/internal/pkpass"
)

// Location limits.
const (
	MaxLocations       = 10
	DefaultMaxDistance = 100.0
)

const defaultBarcodeFormat = "PKBarcodeFormatQR"

var barcodeFormats = map[string]bool{
	"PKBarcodeFormatQR":      true,
	"PKBarcodeFormatPDF417":  true,
	"PKBarcodeFormatAztec":   true,
	"PKBarcodeFormatCode128": true,
}

// barcode builds the barcode entry. The message defaults to the customer id.
func barcode(cfg loyalty.BarcodeConfig, src Sources, customerID string) pkpass.Barcode {
	format := cfg.Format
	if !barcodeFormats[format] {
		format = defaultBarcodeFormat
	}

	message := src.Render(cfg.Message)
	if strings.TrimSpace(message) == "" {
		message = customerID
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "iso-8859-1"
	}

	return pkpass.Barcode{
		Format:          format,
		Message:         message,
		MessageEncoding: encoding,
		AltText:         src.Render(cfg.AltText),
	}
}

// locations keeps geofences with finite, in-range coordinates, at most
// MaxLocations of them. The distance applies to the whole set.
func locations(cfg *loyalty.PassConfig, fallbackText string) ([]pkpass.Location, float64) {
	var out []pkpass.Location
	for _, l := range cfg.Locations {
		if len(out) == MaxLocations {
			break
		}
		if !validCoordinate(l.Latitude, 90) || !validCoordinate(l.Longitude, 180) {
			continue
		}
		text := strings.TrimSpace(l.RelevantText)
		if text == "" {
			text = fallbackText
		}
		out = append(out, pkpass.Location{
			Latitude:     *l.Latitude,
			Longitude:    *l.Longitude,
			RelevantText: text,
		})
	}

	if len(out) == 0 {
		return nil, 0
	}
	return out, maxDistance(cfg.MaxDistance)
}

func validCoordinate(v *float64, limit float64) bool {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return false
	}
	return math.Abs(*v) <= limit
}

func maxDistance(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return DefaultMaxDistance
	}
	return *v
}

// color converts #rgb and #rrggbb to the rgb(r, g, b) form pass.json uses.
// Values already in rgb() form pass through; anything else is dropped.
func color(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "rgb(") {
		return s
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return ""
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("rgb(%d, %d, %d)", v>>16&0xff, v>>8&0xff, v&0xff)
}
