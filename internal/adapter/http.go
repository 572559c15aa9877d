package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/utils"
	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/go-resty/resty/v2"
)

type httpBrokerClient struct {
	client *utils.HTTPClient

	mu    sync.RWMutex
	token string

	logger *logger.Logger
}

// NewHTTPBrokerClient constructs an HTTP/REST implementation of
// [BrokerClient]. It normalises and validates the base URL from httpAddress
// and configures the underlying HTTP client with the resolved base URL and
// request timeout.
//
// Returns an error if httpAddress is empty or cannot be parsed as a valid URL.
func NewHTTPBrokerClient(httpAddress string, requestTimeout time.Duration, logger *logger.Logger) (BrokerClient, error) {
	baseURL, err := normalizeBaseURL(httpAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid broker http address: %w", err)
	}

	client := utils.NewHTTPClient()
	client.
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout)

	return &httpBrokerClient{client: client, logger: logger}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken implements [BrokerClient]. It stores token (whitespace-trimmed)
// for use in the Authorization header of all subsequent mutating requests.
func (h *httpBrokerClient) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

// Token implements [BrokerClient].
func (h *httpBrokerClient) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// CreateSession implements [BrokerClient]. It POSTs to /api/sessions and
// stores the granted token via SetToken.
func (h *httpBrokerClient) CreateSession(ctx context.Context) (models.SessionGrant, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		Post("/api/sessions")
	if err != nil {
		return models.SessionGrant{}, fmt.Errorf("create session request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.SessionGrant{}, err
	}

	var grant models.SessionGrant
	if err = json.Unmarshal(resp.Body(), &grant); err != nil {
		return models.SessionGrant{}, fmt.Errorf("decode create session response: %w", err)
	}

	h.SetToken(grant.Token)
	h.logger.Info().
		Str("session_id", grant.SessionID).
		Time("expires_at", grant.ExpiresAt).
		Msg("session created")

	return grant, nil
}

// SessionInfo implements [BrokerClient].
func (h *httpBrokerClient) SessionInfo(ctx context.Context, sessionID string) (models.SessionInfo, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get("/api/sessions/" + url.PathEscape(sessionID))
	if err != nil {
		return models.SessionInfo{}, fmt.Errorf("session info request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.SessionInfo{}, err
	}

	var info models.SessionInfo
	if err = json.Unmarshal(resp.Body(), &info); err != nil {
		return models.SessionInfo{}, fmt.Errorf("decode session info response: %w", err)
	}
	return info, nil
}

// SessionHealth implements [BrokerClient].
func (h *httpBrokerClient) SessionHealth(ctx context.Context, sessionID string) (models.SessionHealth, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get("/api/sessions/" + url.PathEscape(sessionID) + "/health")
	if err != nil {
		return models.SessionHealth{}, fmt.Errorf("session health request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.SessionHealth{}, err
	}

	var health models.SessionHealth
	if err = json.Unmarshal(resp.Body(), &health); err != nil {
		return models.SessionHealth{}, fmt.Errorf("decode session health response: %w", err)
	}
	return health, nil
}

// PushSchema implements [BrokerClient].
func (h *httpBrokerClient) PushSchema(ctx context.Context, sessionID string, schema *models.UIDescription, preserveState bool) (models.PushResult, error) {
	body := struct {
		Schema        *models.UIDescription `json:"schema"`
		PreserveState bool                  `json:"preserveState"`
	}{Schema: schema, PreserveState: preserveState}

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/api/sessions/" + url.PathEscape(sessionID) + "/schema")
	if err != nil {
		return models.PushResult{}, fmt.Errorf("push schema request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.PushResult{}, err
	}

	var result models.PushResult
	if err = json.Unmarshal(resp.Body(), &result); err != nil {
		return models.PushResult{}, fmt.Errorf("decode push schema response: %w", err)
	}
	return result, nil
}

// ExtendSession implements [BrokerClient].
func (h *httpBrokerClient) ExtendSession(ctx context.Context, sessionID string, extra time.Duration) (models.SessionExtension, error) {
	body := struct {
		Duration string `json:"duration"`
	}{Duration: extra.String()}

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/api/sessions/" + url.PathEscape(sessionID) + "/extend")
	if err != nil {
		return models.SessionExtension{}, fmt.Errorf("extend session request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.SessionExtension{}, err
	}

	var extension models.SessionExtension
	if err = json.Unmarshal(resp.Body(), &extension); err != nil {
		return models.SessionExtension{}, fmt.Errorf("decode extend session response: %w", err)
	}
	return extension, nil
}

// DeleteSession implements [BrokerClient].
func (h *httpBrokerClient) DeleteSession(ctx context.Context, sessionID string) error {
	resp, err := h.authedRequest(ctx).
		Delete("/api/sessions/" + url.PathEscape(sessionID))
	if err != nil {
		return fmt.Errorf("delete session request: %w", err)
	}

	return mapHTTPError(resp)
}

// Stats implements [BrokerClient].
func (h *httpBrokerClient) Stats(ctx context.Context) (models.BrokerStats, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get("/api/stats")
	if err != nil {
		return models.BrokerStats{}, fmt.Errorf("stats request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.BrokerStats{}, err
	}

	var stats models.BrokerStats
	if err = json.Unmarshal(resp.Body(), &stats); err != nil {
		return models.BrokerStats{}, fmt.Errorf("decode stats response: %w", err)
	}
	return stats, nil
}

func (h *httpBrokerClient) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if token := h.Token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}
