package tenantapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/crmkit/access-server/tenantapi"
)

func TestWhoAmIDecodesNumericID(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wp-json/wp/v2/users/me", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    42,
			"name":  "Jane",
			"roles": []string{"editor", "author"},
		})
	}))
	defer srv.Close()

	client := tenantapi.NewHTTPClient(tenantapi.WithHTTPClient(srv.Client()))
	user, err := client.WhoAmI(context.Background(), srv.URL, "jane", "secret")
	require.NoError(t, err)
	require.Equal(t, "42", user.ID)
	require.Equal(t, []string{"editor", "author"}, user.Roles)
	require.Equal(t, tenantapi.BasicAuthHeader("jane", "secret"), gotAuth)
}

func TestWhoAmIRejectedCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := tenantapi.NewHTTPClient(tenantapi.WithHTTPClient(srv.Client()))
	_, err := client.WhoAmI(context.Background(), srv.URL, "jane", "wrong")
	require.ErrorIs(t, err, tenantapi.ErrInvalidCredentials)
}

func TestServerErrorMapsToUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := tenantapi.NewHTTPClient(tenantapi.WithHTTPClient(srv.Client()))
	_, err := client.FetchWhitelist(context.Background(), srv.URL, "")
	require.ErrorIs(t, err, interrors.ErrUpstreamUnreachable)
}

func TestTransportFailureMapsToUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := tenantapi.NewHTTPClient()
	_, err := client.FetchWhitelist(context.Background(), srv.URL, "")
	require.ErrorIs(t, err, interrors.ErrUpstreamUnreachable)
}

func TestAppendAuditPostsEvent(t *testing.T) {
	var received tenantapi.AuditEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/wp-json/crm/v1/audit-log", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := tenantapi.NewHTTPClient(tenantapi.WithHTTPClient(srv.Client()))
	event := tenantapi.AuditEvent{ID: "ev-1", Kind: tenantapi.AuditUnauthorizedAttempt, SubjectID: "42", IP: "203.0.113.9"}
	require.NoError(t, client.AppendAudit(context.Background(), srv.URL, "", event))
	require.Equal(t, event.ID, received.ID)
	require.Equal(t, event.Kind, received.Kind)
}
