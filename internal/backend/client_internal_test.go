package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jroosing/dnsdash/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON_Strict(t *testing.T) {
	var gotAccept, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/api/ok":
			_, _ = w.Write([]byte(`{"count":3}`))
		case "/api/bad":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
		default:
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()

	c := New(config.BackendConfig{URL: srv.URL, UserAgent: "ua"}, nil, nil)

	var out Count
	require.NoError(t, c.getJSON(context.Background(), "ok", nil, &out))
	assert.Equal(t, int64(3), out.Count)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "ua", gotUA)

	err := c.getJSON(context.Background(), "bad", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
	assert.Less(t, len(err.Error()), 1100, "error body is capped at 1 KiB")

	err = c.getJSON(context.Background(), "junk", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
