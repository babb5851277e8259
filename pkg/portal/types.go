// Package portal drives a browser session through the shipment portal's
// authentication and shipment-list flows and parses the loosely structured
// result markup into typed records. The portal exposes no API and no stable
// markup contract, so every lookup is a cascade of fallback strategies with
// defensive validation.
package portal

import "time"

// Unknown is the documented default for fields the extractor could not
// resolve. The portal is German-speaking, and so are its consumers.
const Unknown = "Unbekannt"

// Credentials are the plaintext portal credentials for one login call.
// They are never persisted by the engine.
type Credentials struct {
	Username string
	Password string
}

// ShipmentSummary is one row of the shipment overview. TrackingNumber is
// unique within one load; unresolved fields keep their defaults.
type ShipmentSummary struct {
	TrackingNumber string     `json:"trackingNumber"`
	CustomerName   string     `json:"customerName"`
	Status         string     `json:"status"`
	Location       string     `json:"location,omitempty"`
	LastUpdate     *time.Time `json:"lastUpdate,omitempty"`
	IsOverdue      bool       `json:"isOverdue"`
}

// TrackingEvent is one row of a shipment's detail history, in the order the
// portal presents it.
type TrackingEvent struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// TrackingResult is the single-shipment detail counterpart to ShipmentSummary.
type TrackingResult struct {
	TrackingNumber string          `json:"trackingNumber"`
	Status         string          `json:"status"`
	Location       string          `json:"location,omitempty"`
	LastUpdate     *time.Time      `json:"lastUpdate,omitempty"`
	Events         []TrackingEvent `json:"events"`
}

// ProgressFunc receives engine checkpoints: a short machine-readable step
// tag, a human-readable message and a 0-100 percentage. The sink must not
// block; no acknowledgement is expected.
type ProgressFunc func(step, message string, progress int)

// Progress step tags emitted by the engine.
const (
	StepConnecting = "connecting"
	StepLoggingIn  = "logging_in"
	StepNavigating = "navigating"
	StepLoading    = "loading"
	StepSearching  = "searching"
	StepProcessing = "processing"
	StepExtracting = "extracting"
	StepComplete   = "complete"
	StepFailed     = "error"
)
