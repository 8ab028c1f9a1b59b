package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/openkat/scheduler/internal/models"
)

const organisationsCacheKey = "organisations"

// InventoryClient resolves organisations and their OOIs. Only the
// organisation list is cached; OOI lists are fetched fresh on every call
// since mutation polling depends on picking up recent changes.
type InventoryClient struct {
	*HTTPService
	orgCache *ttlCache[string, []models.Organisation]
}

func NewInventoryClient(baseURL string, timeout, orgTTL time.Duration) *InventoryClient {
	return &InventoryClient{
		HTTPService: NewHTTPService("inventory", baseURL, timeout),
		orgCache:    newTTLCache[string, []models.Organisation](orgTTL),
	}
}

// Organisations lists every tenant the inventory knows about, used by the
// supervisor's reconciliation loop.
func (c *InventoryClient) Organisations(ctx context.Context) ([]models.Organisation, error) {
	if orgs, err := c.orgCache.Get(organisationsCacheKey); err == nil {
		return orgs, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/organisations", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var orgs []models.Organisation
	if err := json.NewDecoder(resp.Body).Decode(&orgs); err != nil {
		return nil, fmt.Errorf("decode organisations: %w", err)
	}
	c.orgCache.Set(organisationsCacheKey, orgs)
	return orgs, nil
}

// RecentlyModifiedOOIs returns OOIs in orgID whose scan profile or metadata
// changed after since, uncached: the mutation-poll source needs fresh data
// on every call.
func (c *InventoryClient) RecentlyModifiedOOIs(ctx context.Context, orgID string, since time.Time) ([]models.OOI, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/organisations/%s/oois?modified_since=%s", c.BaseURL, orgID, since.Format(time.RFC3339)), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var oois []models.OOI
	if err := json.NewDecoder(resp.Body).Decode(&oois); err != nil {
		return nil, fmt.Errorf("decode oois: %w", err)
	}
	return oois, nil
}

// RandomOOIs returns up to n arbitrary OOIs in orgID, backing the
// random-fill population source.
func (c *InventoryClient) RandomOOIs(ctx context.Context, orgID string, n int) ([]models.OOI, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/organisations/%s/oois/random?n=%d", c.BaseURL, orgID, n), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var oois []models.OOI
	if err := json.NewDecoder(resp.Body).Decode(&oois); err != nil {
		return nil, fmt.Errorf("decode oois: %w", err)
	}
	return oois, nil
}
