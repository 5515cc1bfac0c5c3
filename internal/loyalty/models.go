// Package loyalty reads the loyalty backend's customer, card and pass
// rendering records. Nothing here is cached: every regeneration reads the
// current state.
package loyalty

import "errors"

// Repository errors.
var (
	ErrCardNotFound   = errors.New("loyalty card not found")
	ErrConfigNotFound = errors.New("pass configuration not found")
)

// Customer is the card holder.
type Customer struct {
	ID         string
	FullName   string
	Email      string
	Phone      string
	BusinessID string
}

// Card is the loyalty state of one card number.
type Card struct {
	CardNumber    string
	CustomerID    string
	CurrentPoints int
	CurrentStamps int
}

// Snapshot is the card and its holder as read at one instant.
type Snapshot struct {
	Customer Customer
	Card     Card
}

// PassConfig is a business's pass rendering configuration.
type PassConfig struct {
	BusinessID   string
	Appearance   Appearance
	MemberFields []FieldConfig
	CustomFields []FieldConfig
	LinkFields   []LinkConfig
	Barcode      BarcodeConfig
	Locations    []LocationConfig
	MaxDistance  *float64
}

// Appearance holds colors, texts and image sources.
type Appearance struct {
	OrganizationName string `json:"organization_name"`
	Description      string `json:"description"`
	LogoText         string `json:"logo_text"`
	BackgroundColor  string `json:"background_color"`
	ForegroundColor  string `json:"foreground_color"`
	LabelColor       string `json:"label_color"`
	LogoURL          string `json:"logo_url"`
	IconURL          string `json:"icon_url"`
	StripImageURL    string `json:"strip_image_url"`
}

// FieldConfig declares one pass field. Value and Label may contain
// {{table.field}} placeholders.
type FieldConfig struct {
	Key           string `json:"key"`
	Label         string `json:"label"`
	Value         string `json:"value"`
	Position      string `json:"position"`
	ChangeMessage string `json:"change_message,omitempty"`
}

// LinkConfig is a web link shown on the back of the pass.
type LinkConfig struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// BarcodeConfig describes the pass barcode.
type BarcodeConfig struct {
	Format   string `json:"format"`
	Message  string `json:"message"`
	Encoding string `json:"encoding"`
	AltText  string `json:"alt_text"`
}

// LocationConfig is one geofence. Entries without both coordinates are
// ignored at render time.
type LocationConfig struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	RelevantText string   `json:"relevant_text"`
}
