package gateway

import "strings"

// Status is a provider-independent transaction status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// NormalizeStatus converts a provider status or PayTabs response code into
// the internal status. Unknown values map to pending.
func NormalizeStatus(providerStatus string) Status {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "success", "succeeded", "completed", "paid", "approved", "authorized", "accredited", "a", "captured":
		return StatusCompleted
	case "failed", "cancelled", "canceled", "declined", "rejected", "error", "expired", "voided", "d", "e", "v", "x":
		return StatusFailed
	case "refunded", "reversed", "charged_back", "chargeback":
		return StatusRefunded
	default:
		// "pending", "in_process", "processing", "h" (hold), "p" ...
		return StatusPending
	}
}
