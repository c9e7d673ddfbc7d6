package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := &ClientConfig{
		Host:         "ch.internal",
		Port:         9000,
		Database:     "meanrev",
		User:         "default",
		Password:     "secret",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		MaxExecTime:  time.Minute,
		AsyncInsert:  true,
		WaitForAsync: false,
	}

	u, err := url.Parse(buildDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.internal:9000", u.Host)
	assert.Equal(t, "/meanrev", u.Path)

	q := u.Query()
	assert.Equal(t, "5s", q.Get("dial_timeout"))
	assert.Equal(t, "30s", q.Get("read_timeout"))
	assert.Equal(t, "60", q.Get("max_execution_time"))
	assert.Equal(t, "1", q.Get("async_insert"))
	assert.Empty(t, q.Get("wait_for_async_insert"))
}

func TestBuildDSNHTTPScheme(t *testing.T) {
	cfg := &ClientConfig{Host: "localhost", Port: 8123, Database: "meanrev", UseHTTP: true}
	u, err := url.Parse(buildDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse+http", u.Scheme)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
