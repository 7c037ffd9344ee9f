package tenantapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/pkg/errors"
)

var ErrInvalidCredentials = errors.New("tenant rejected credentials")

const (
	whoAmIPath    = "/wp-json/wp/v2/users/me?context=edit"
	whitelistPath = "/wp-json/crm/v1/ip-whitelist"
	auditPath     = "/wp-json/crm/v1/audit-log"
)

var _ Client = (*HTTPClient)(nil)

type HTTPClient struct {
	httpClient *http.Client
}

type HTTPClientOption func(*HTTPClient)

func WithHTTPClient(client *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

func NewHTTPClient(options ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *HTTPClient) WhoAmI(ctx context.Context, siteURL, username, secret string) (*ExternalUser, error) {
	var payload struct {
		ID    json.Number `json:"id"`
		Name  string      `json:"name"`
		Roles []string    `json:"roles"`
	}
	header := BasicAuthHeader(username, secret)
	if err := c.do(ctx, http.MethodGet, siteURL, whoAmIPath, header, nil, &payload); err != nil {
		return nil, err
	}
	return &ExternalUser{
		ID:    payload.ID.String(),
		Name:  payload.Name,
		Roles: payload.Roles,
	}, nil
}

func (c *HTTPClient) FetchWhitelist(ctx context.Context, siteURL, authHeader string) ([]WhitelistEntry, error) {
	var entries []WhitelistEntry
	if err := c.do(ctx, http.MethodGet, siteURL, whitelistPath, authHeader, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *HTTPClient) AppendAudit(ctx context.Context, siteURL, authHeader string, event AuditEvent) error {
	return c.do(ctx, http.MethodPost, siteURL, auditPath, authHeader, event, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, siteURL, path, authHeader string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[HTTPClient.do] marshal body")
		}
		reader = bytes.NewReader(encoded)
	}

	url := strings.TrimRight(siteURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrap(err, "[HTTPClient.do] build request")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(interrors.ErrUpstreamUnreachable, "[HTTPClient.do] %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrInvalidCredentials
	case resp.StatusCode >= 500:
		return errors.Wrapf(interrors.ErrUpstreamUnreachable, "[HTTPClient.do] %s %s: status %d", method, url, resp.StatusCode)
	case resp.StatusCode >= 400:
		return errors.Errorf("[HTTPClient.do] %s %s: status %d", method, url, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, fmt.Sprintf("[HTTPClient.do] decode %s response", path))
		}
	}
	return nil
}
