package ipgate

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/pkg/errors"
)

// EchoClient reports the caller's public IP as seen from outside.
type EchoClient interface {
	PublicIP(ctx context.Context) (string, error)
}

// HTTPEcho queries an ipify-style JSON echo endpoint.
type HTTPEcho struct {
	url        string
	httpClient *http.Client
}

func NewHTTPEcho(url string) *HTTPEcho {
	return &HTTPEcho{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (e *HTTPEcho) PublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return "", errors.Wrap(err, "[HTTPEcho.PublicIP] build request")
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrapf(interrors.ErrVerificationImpossible, "[HTTPEcho.PublicIP] %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(interrors.ErrVerificationImpossible, "[HTTPEcho.PublicIP] status %d", resp.StatusCode)
	}

	var payload struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.IP == "" {
		return "", errors.Wrap(interrors.ErrVerificationImpossible, "[HTTPEcho.PublicIP] bad payload")
	}
	return payload.IP, nil
}
