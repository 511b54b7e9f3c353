package workbench

import (
	"context"
	"sync"

	"github.com/rpggio/marginalia/internal/domain/project"
)

// Listing is a user's project picker contents.
type Listing struct {
	Projects []project.Summary `json:"projects"`
	Library  []project.Summary `json:"library"`
}

// ListingListener receives a user's refreshed listing.
type ListingListener interface {
	ListingChanged(userID string, listing *Listing)
}

type listingCache struct {
	mu       sync.Mutex
	byUser   map[string]*Listing
	listener ListingListener
}

func (c *listingCache) get(userID string) (*Listing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.byUser[userID]
	return l, ok
}

func (c *listingCache) put(userID string, l *Listing) {
	c.mu.Lock()
	if c.byUser == nil {
		c.byUser = make(map[string]*Listing)
	}
	c.byUser[userID] = l
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener.ListingChanged(userID, l)
	}
}

// SetListingListener registers l to receive refreshed listings.
func (a *API) SetListingListener(l ListingListener) {
	a.listings.mu.Lock()
	defer a.listings.mu.Unlock()
	a.listings.listener = l
}

// CachedListing returns the last listing computed for userID.
func (a *API) CachedListing(userID string) (*Listing, bool) {
	return a.listings.get(userID)
}

func (a *API) loadListing(ctx context.Context, userID string) (*Listing, error) {
	active, err := a.projects.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	library, err := a.projects.ListLibrary(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		active = []project.Summary{}
	}
	if library == nil {
		library = []project.Summary{}
	}
	return &Listing{Projects: active, Library: library}, nil
}

// RefreshListing reloads and caches userID's listing. Failures are logged;
// the previous listing stays cached.
func (a *API) RefreshListing(ctx context.Context, userID string) {
	l, err := a.loadListing(ctx, userID)
	if err != nil {
		a.logger.Warn("refreshing listing failed", "user_id", userID, "error", err)
		return
	}
	a.listings.put(userID, l)
}
