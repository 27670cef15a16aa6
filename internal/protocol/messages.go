package protocol

import "time"

// Utterance is a recognized phrase as processed by the till.
type Utterance struct {
	Register  string    `json:"register"`
	Text      string    `json:"text"`
	Outcome   string    `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

// LineAdded is emitted when a priced line item joins the bill.
type LineAdded struct {
	Register  string    `json:"register"`
	Item      string    `json:"item"`
	Quantity  int       `json:"quantity"`
	Rate      string    `json:"rate"`
	Total     string    `json:"total"`
	Customer  string    `json:"customer"`
	Timestamp time.Time `json:"timestamp"`
}

// BillExported is emitted after a bill was rendered and the ledger cleared.
type BillExported struct {
	Register  string    `json:"register"`
	BillID    string    `json:"bill_id"`
	Customer  string    `json:"customer"`
	Lines     int       `json:"lines"`
	Total     string    `json:"total"`
	Path      string    `json:"path"`
	URL       string    `json:"url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TTSRequest asks a speech runtime on the bus to say Text.
type TTSRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Voice     string `json:"voice,omitempty"`
	Target    string `json:"target,omitempty"`
}

const (
	SubjectUtterance    = "till.utterance"
	SubjectLineAdded    = "till.line.added"
	SubjectBillExported = "till.bill.exported"
	SubjectTTSRequest   = "tts.request"
)
