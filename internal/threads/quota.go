package threads

import (
	"context"
	"fmt"
)

// Advisor reports the account's current rate-limit usage. It is advisory:
// Publisher never consults it.
type Advisor struct {
	reader QuotaReader
}

// NewAdvisor returns an Advisor backed by reader.
func NewAdvisor(reader QuotaReader) *Advisor {
	return &Advisor{reader: reader}
}

// CurrentUsage reads the quota snapshot for creds.
func (a *Advisor) CurrentUsage(ctx context.Context, creds Credentials) (QuotaSnapshot, error) {
	if creds.UserID == "" {
		return QuotaSnapshot{}, ValidationError{Field: "userId", Reason: "is required"}
	}
	if creds.AccessToken == "" {
		return QuotaSnapshot{}, ValidationError{Field: "accessToken", Reason: "is required"}
	}
	snap, err := a.reader.PublishingLimit(ctx, creds)
	if err != nil {
		return QuotaSnapshot{}, fmt.Errorf("read publishing limit: %w", err)
	}
	return snap, nil
}
