package models

// Identity is the caller as established by the upstream auth gateway.
// Every store and service call receives the organization explicitly from it.
type Identity struct {
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
	DeviceID       string `json:"device_id,omitempty"`
}
