package signal

import (
	"strings"
	"time"
)

// Wildcard subscribes to every signal name.
const Wildcard = "*"

// Names emitted by the default demo script.
const (
	SelectTicket   = "select-ticket"
	GenerateDraft  = "generate-draft"
	ApproveDraft   = "approve-draft"
	PublishV1      = "publish-v1"
	PublishV2      = "publish-v2"
	OpenProvenance = "open-provenance"
)

// Signal is a single named notification.
type Signal struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Step      int       `json:"step,omitempty"`
	Sequence  int64     `json:"sequence"`
	Source    string    `json:"source,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Publisher emits signals onto a bus.
type Publisher interface {
	Publish(Signal) Signal
}

// Logger records drop/diagnostic messages. It matches logbook.Logbook.Printf.
type Logger interface {
	Printf(format string, args ...any)
}

// NormalizeName canonicalizes a signal name for routing.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
