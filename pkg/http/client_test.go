package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndParseDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "high", r.URL.Query().Get("impact"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"title":"NFP"},{"title":"CPI"}]`))
	}))
	defer srv.Close()

	var events []struct {
		Title string `json:"title"`
	}
	c := NewClient(WithTimeout(2 * time.Second))
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"impact": {"high"}},
	}, &events)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "NFP", events[0].Title)
}

func TestSendAndParseRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient()
	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSendAndParsePostsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient()
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method: "POST",
		URL:    srv.URL,
		Body:   map[string]string{"pair": "EURUSD"},
	}, nil)
	require.NoError(t, err)
}

func TestParseTimeFormats(t *testing.T) {
	got, ok := ParseTime("2026-03-01T10:00:00Z")
	require.True(t, ok)
	assert.Equal(t, 2026, got.Year())

	unix := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).Unix()
	got, ok = ParseTime("1772359200")
	require.True(t, ok)
	assert.Equal(t, unix, got.Unix())

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
}

func TestParseTimeDefaultFallsBack(t *testing.T) {
	def := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
	assert.True(t, ParseTimeDefault("not-a-time", def).Equal(def))
}
