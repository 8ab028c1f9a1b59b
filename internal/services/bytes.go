package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/openkat/scheduler/internal/models"
)

// BytesClient talks to the raw-data store: fetching BoefjeMeta history for
// the grace-period gate, and raw-data references by id. It authenticates with a bearer token it refreshes proactively
// by inspecting the token's own exp claim, rather than waiting for a 401
//.
type BytesClient struct {
	*HTTPService
	username string
	password string

	tokenMu  sync.Mutex
	token    string
	tokenExp time.Time
}

func NewBytesClient(baseURL, username, password string, timeout time.Duration) *BytesClient {
	return &BytesClient{
		HTTPService: NewHTTPService("raw-data", baseURL, timeout),
		username:    username,
		password:    password,
	}
}

// bearerToken returns a bearer token good for at least one more request,
// refreshing it if none is held or the held one is near expiry.
func (c *BytesClient) bearerToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Until(c.tokenExp) > 30*time.Second {
		return c.token, nil
	}
	return c.refreshLocked(ctx)
}

func (c *BytesClient) refreshLocked(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"username": c.username, "password": c.password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	exp, err := tokenExpiry(out.AccessToken)
	if err != nil {
		log.Warn().Str("service", c.Name).Err(err).Msg("could not read token expiry, assuming short-lived")
		exp = time.Now().Add(time.Minute)
	}

	c.token = out.AccessToken
	c.tokenExp = exp
	return c.token, nil
}

// tokenExpiry reads the exp claim from a JWT without verifying its
// signature: the scheduler trusts the issuing service's TLS channel, not the
// token's own signature, and only needs the claim to decide when to refresh.
func tokenExpiry(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return time.Time{}, err
	}
	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	return time.Unix(int64(expFloat), 0), nil
}

func (c *BytesClient) authedRequest(ctx context.Context, method, path string) (*http.Request, error) {
	tok, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return req, nil
}

// LatestBoefjeMeta returns the most recent run record for (boefjeID,
// inputOOI), used to enforce the grace period between repeat runs of the
// same boefje against the same target.
func (c *BytesClient) LatestBoefjeMeta(ctx context.Context, boefjeID, inputOOI string) (*models.BoefjeMeta, error) {
	req, err := c.authedRequest(ctx, http.MethodGet,
		fmt.Sprintf("/v1/boefje_meta/latest?boefje_id=%s&input_ooi=%s", boefjeID, inputOOI))
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var meta models.BoefjeMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode boefje meta: %w", err)
	}
	return &meta, nil
}

// RawDataByID fetches the raw-data reference stored under id, including its
// mime types. The normalizer scheduler does not call it: it takes mime types
// from the raw-data-ready event itself.
func (c *BytesClient) RawDataByID(ctx context.Context, id string) (*models.RawDataRef, error) {
	req, err := c.authedRequest(ctx, http.MethodGet, "/v1/raw/"+id)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ref models.RawDataRef
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return nil, fmt.Errorf("decode raw data ref: %w", err)
	}
	return &ref, nil
}
