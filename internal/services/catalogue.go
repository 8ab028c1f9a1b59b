package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/openkat/scheduler/internal/models"
)

// CatalogueClient resolves plugin metadata (enabled state, scan level,
// consumed types) per organisation. Results are cached with a short TTL
// since plugin configuration changes are infrequent but polled every
// populate tick.
type CatalogueClient struct {
	*HTTPService
	cache *ttlCache[string, []models.Plugin]
}

// NewCatalogueClient builds a client caching whole-organisation plugin lists
// for ttl.
func NewCatalogueClient(baseURL string, timeout, ttl time.Duration) *CatalogueClient {
	return &CatalogueClient{
		HTTPService: NewHTTPService("catalogue", baseURL, timeout),
		cache:       newTTLCache[string, []models.Plugin](ttl),
	}
}

// PluginsForOrganisation returns every plugin registered for orgID, of
// either type, consulting the cache before issuing an HTTP call.
func (c *CatalogueClient) PluginsForOrganisation(ctx context.Context, orgID string) ([]models.Plugin, error) {
	if plugins, err := c.cache.Get(orgID); err == nil {
		return plugins, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/organisations/%s/plugins", c.BaseURL, orgID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var plugins []models.Plugin
	if err := json.NewDecoder(resp.Body).Decode(&plugins); err != nil {
		return nil, fmt.Errorf("decode plugins: %w", err)
	}
	c.cache.Set(orgID, plugins)
	return plugins, nil
}

// BoefjesConsuming filters an organisation's plugins to enabled boefjes that
// consume ooiType, honoring scan level: a boefje is eligible only if its
// scan level does not exceed the OOI's scan profile level.
func (c *CatalogueClient) BoefjesConsuming(ctx context.Context, orgID, ooiType string, scanLevel int) ([]models.Plugin, error) {
	all, err := c.PluginsForOrganisation(ctx, orgID)
	if err != nil {
		return nil, err
	}
	var out []models.Plugin
	for _, p := range all {
		if p.Type != models.PluginTypeBoefje || !p.Enabled {
			continue
		}
		if p.ScanLevel > scanLevel {
			continue
		}
		if p.ConsumesOOIType(ooiType) {
			out = append(out, p)
		}
	}
	return out, nil
}

// NormalizersConsuming filters to enabled normalizers matching any of the
// given raw-data mime types.
func (c *CatalogueClient) NormalizersConsuming(ctx context.Context, orgID string, mimeTypes []string) ([]models.Plugin, error) {
	all, err := c.PluginsForOrganisation(ctx, orgID)
	if err != nil {
		return nil, err
	}
	var out []models.Plugin
	for _, p := range all {
		if p.Type != models.PluginTypeNormalizer || !p.Enabled {
			continue
		}
		if p.ConsumesMimeType(mimeTypes) {
			out = append(out, p)
		}
	}
	return out, nil
}
