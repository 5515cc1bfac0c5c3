// Package pkpass builds signed .pkpass bundles: pass.json, the workspace
// images, a SHA-1 manifest and a detached PKCS#7 signature over it, zipped.
package pkpass

// ContentType is the MIME type of a pass bundle.
const ContentType = "application/vnd.apple.pkpass"

// Pass is the pass.json document of a store card.
type Pass struct {
	FormatVersion       int        `json:"formatVersion"`
	PassTypeIdentifier  string     `json:"passTypeIdentifier"`
	SerialNumber        string     `json:"serialNumber"`
	TeamIdentifier      string     `json:"teamIdentifier"`
	WebServiceURL       string     `json:"webServiceURL"`
	AuthenticationToken string     `json:"authenticationToken"`
	OrganizationName    string     `json:"organizationName"`
	Description         string     `json:"description"`
	LogoText            string     `json:"logoText,omitempty"`
	BackgroundColor     string     `json:"backgroundColor,omitempty"`
	ForegroundColor     string     `json:"foregroundColor,omitempty"`
	LabelColor          string     `json:"labelColor,omitempty"`
	StoreCard           Structure  `json:"storeCard"`
	Barcodes            []Barcode  `json:"barcodes,omitempty"`
	Barcode             *Barcode   `json:"barcode,omitempty"`
	Locations           []Location `json:"locations,omitempty"`
	MaxDistance         float64    `json:"maxDistance,omitempty"`
}

// Structure groups fields by where they render.
type Structure struct {
	HeaderFields    []Field `json:"headerFields,omitempty"`
	PrimaryFields   []Field `json:"primaryFields,omitempty"`
	SecondaryFields []Field `json:"secondaryFields,omitempty"`
	AuxiliaryFields []Field `json:"auxiliaryFields,omitempty"`
	BackFields      []Field `json:"backFields,omitempty"`
}

// Field is one pass field. Value is a string or a number.
type Field struct {
	Key               string   `json:"key"`
	Label             string   `json:"label,omitempty"`
	Value             any      `json:"value"`
	AttributedValue   string   `json:"attributedValue,omitempty"`
	ChangeMessage     string   `json:"changeMessage,omitempty"`
	DataDetectorTypes []string `json:"dataDetectorTypes,omitempty"`
}

// Barcode is a barcode rendered on the front of the pass.
type Barcode struct {
	Format          string `json:"format"`
	Message         string `json:"message"`
	MessageEncoding string `json:"messageEncoding"`
	AltText         string `json:"altText,omitempty"`
}

// Location makes the pass relevant near a point.
type Location struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RelevantText string  `json:"relevantText,omitempty"`
}
