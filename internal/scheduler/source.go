package scheduler

import (
	"context"
	"fmt"

	"github.com/wakeguard/wakeguard/internal/accounts"
	"github.com/wakeguard/wakeguard/internal/assist"
	"github.com/wakeguard/wakeguard/internal/auth"
	"github.com/wakeguard/wakeguard/internal/models"
)

// AssistSource fetches snapshots from the cloud assist API using the
// fallback-resolved account's credential.
type AssistSource struct {
	resolver *accounts.Resolver
	creds    *auth.Provider
	client   *assist.Client
}

// NewAssistSource creates a snapshot source over the assist API.
func NewAssistSource(resolver *accounts.Resolver, creds *auth.Provider, client *assist.Client) *AssistSource {
	return &AssistSource{resolver: resolver, creds: creds, client: client}
}

// Fetch implements SnapshotSource.
func (s *AssistSource) Fetch(ctx context.Context) (*models.QuotaSnapshot, error) {
	emails, err := s.resolver.Resolve(nil)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, fmt.Errorf("no usable account for snapshot fetch")
	}

	handle, err := s.creds.Handle(emails[0])
	if err != nil {
		return nil, err
	}
	if handle.Expired() {
		if err := handle.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	snapshot, err := s.client.FetchQuotaSnapshot(ctx, handle.Token())
	if err != nil {
		return nil, err
	}
	snapshot.AccountEmail = handle.Email()
	return snapshot, nil
}
