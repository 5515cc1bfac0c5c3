package models

import "time"

// RegisterDeviceRequest is the body a device posts when it adds a pass.
type RegisterDeviceRequest struct {
	PushToken string `json:"pushToken" validate:"required"`
}

// SerialNumbers is the update feed response.
type SerialNumbers struct {
	LastUpdated   string   `json:"lastUpdated"`
	SerialNumbers []string `json:"serialNumbers"`
}

// DeviceLogs carries diagnostic messages from wallet clients.
type DeviceLogs struct {
	Logs []string `json:"logs" validate:"max=100,dive,max=4096"`
}

// SerialRequest names one pass. It is the body of the internal triggers.
type SerialRequest struct {
	SerialNumber string `json:"serialNumber" validate:"required,max=128"`
}

// PassMetadata describes an issued pass. The authentication token is never
// exposed here.
type PassMetadata struct {
	SerialNumber       string    `json:"serialNumber"`
	PassTypeIdentifier string    `json:"passTypeIdentifier"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// NotifyResponse reports a push fan-out.
type NotifyResponse struct {
	Message      string `json:"message"`
	SerialNumber string `json:"serialNumber"`
	Attempted    int    `json:"attempted"`
	Sent         int    `json:"sent"`
	Failed       int    `json:"failed"`
}
