// Package services adapts the three external dependencies the scheduler
// polls each tick — the plugin catalogue, the OOI inventory, and the raw
// data store — behind small typed clients, each embedding a shared
// HTTPService base for connection retry, health checks, and structured
// logging.
package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openkat/scheduler/internal/apperrors"
)

// HTTPService holds the dial/health-check retry policy and HTTP client
// shared by every service client. Retry counts and delays are fixed rather
// than configurable per spec.md's "ten dial attempts, then health-poll"
// design note.
type HTTPService struct {
	Name       string
	BaseURL    string
	httpClient *http.Client

	DialRetries   int
	DialInterval  time.Duration
	HealthRetries int
	HealthBackoff time.Duration
}

// NewHTTPService builds a base client with the scheduler's standard retry
// policy: 10 TCP dial attempts at a fixed interval, then a GET /health poll
// with exponential backoff, matching the teacher's staged health-checker
// shape (retryAttempts + retryDelay fields, poll loop).
func NewHTTPService(name, baseURL string, timeout time.Duration) *HTTPService {
	return &HTTPService{
		Name:    name,
		BaseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		DialRetries:   10,
		DialInterval:  time.Second,
		HealthRetries: 5,
		HealthBackoff: 2 * time.Second,
	}
}

// WaitUntilAvailable blocks until the service accepts TCP connections and
// reports healthy, or ctx is done. It is called once at scheduler startup
// per spec.md §4.8.
func (s *HTTPService) WaitUntilAvailable(ctx context.Context) error {
	host := s.hostport()
	var dialErr error
	for attempt := 0; attempt < s.DialRetries; attempt++ {
		conn, err := net.DialTimeout("tcp", host, time.Second)
		if err == nil {
			conn.Close()
			dialErr = nil
			break
		}
		dialErr = err
		log.Warn().Str("service", s.Name).Int("attempt", attempt+1).Err(err).Msg("service unreachable, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.DialInterval):
		}
	}
	if dialErr != nil {
		return apperrors.NewUnreachable(s.Name, dialErr)
	}

	backoff := s.HealthBackoff
	for attempt := 0; attempt < s.HealthRetries; attempt++ {
		if err := s.checkHealth(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return apperrors.NewUnreachable(s.Name, fmt.Errorf("health check never succeeded"))
}

func (s *HTTPService) checkHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperrors.NewUnreachable(s.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apperrors.NewHTTPError(s.Name, fmt.Errorf("health returned %d", resp.StatusCode))
	}
	return nil
}

// Do executes req, translating transport and status failures into the
// service error taxonomy.
func (s *HTTPService) Do(req *http.Request) (*http.Response, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewUnreachable(s.Name, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, apperrors.NewAuthError(s.Name, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, apperrors.NewHTTPError(s.Name, fmt.Errorf("status %d", resp.StatusCode))
	}
	return resp, nil
}

func (s *HTTPService) hostport() string {
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Host == "" {
		return s.BaseURL
	}
	return u.Host
}
