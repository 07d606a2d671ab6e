package peeringdb

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/url"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/pdbsync/internal/resource"
	"github.com/xelth-com/pdbsync/internal/testinfra"
)

func TestClientAuthHeaders(t *testing.T) {
	pdb := testinfra.NewMockPeeringDB(t)
	pdb.Add("net", resource.Row{"id": 1, "name": "Net One"})
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "anonymous", cfg: Config{}, want: ""},
		{name: "api key", cfg: Config{APIKey: "secret"}, want: "Api-Key secret"},
		{
			name: "basic auth",
			cfg:  Config{User: "alice", Password: "pw"},
			want: "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:pw")),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdb.ResetCaptures()
			tt.cfg.URL = pdb.APIURL()
			tt.cfg.UserAgent = "pdbsync/test gorm/sqlite3"

			rows, err := NewClient(tt.cfg).List(ctx, "net", nil)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "Net One", rows[0]["name"])

			reqs := pdb.Requests("/api/net")
			require.Len(t, reqs, 1)
			assert.Equal(t, tt.want, reqs[0].Header.Get("Authorization"))
			assert.Equal(t, "pdbsync/test gorm/sqlite3", reqs[0].Header.Get("User-Agent"))
		})
	}
}

func TestClientAuthConflict(t *testing.T) {
	pdb := testinfra.NewMockPeeringDB(t)
	c := NewClient(Config{URL: pdb.APIURL(), APIKey: "k", User: "u", Password: "p"})

	_, err := c.List(context.Background(), "net", nil)
	assert.ErrorIs(t, err, ErrAuthConflict)
	assert.Empty(t, pdb.Captures(), "no request may be sent")

	// cache downloads carry no credentials
	_, err = c.Download(context.Background(), pdb.CacheURL()+"/net-0.json")
	assert.NoError(t, err)
}

func TestClientRetriesRateLimit(t *testing.T) {
	pdb := testinfra.NewMockPeeringDB(t)
	pdb.Add("org", resource.Row{"id": 1, "name": "Org"})
	pdb.RateLimit(2)

	clk := testclock.NewClock(time.Now())
	c := NewClient(Config{URL: pdb.APIURL()}, WithClock(clk), WithRetry(time.Second, 5))

	type result struct {
		rows []resource.Row
		err  error
	}
	done := make(chan result, 1)
	go func() {
		rows, err := c.List(context.Background(), "org", nil)
		done <- result{rows, err}
	}()

	require.NoError(t, clk.WaitAdvance(time.Second, 5*time.Second, 1))
	require.NoError(t, clk.WaitAdvance(2*time.Second, 5*time.Second, 1))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Len(t, res.rows, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("request did not finish")
	}
	assert.Len(t, pdb.Requests("/api/org"), 3)
}

func TestClientGivesUpOnRateLimit(t *testing.T) {
	pdb := testinfra.NewMockPeeringDB(t)
	pdb.RateLimit(100)
	c := NewClient(Config{URL: pdb.APIURL()}, WithRetry(time.Millisecond, 2))

	_, err := c.List(context.Background(), "org", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Len(t, pdb.Requests("/api/org"), 2)
}

func TestClientCompatibilityError(t *testing.T) {
	pdb := testinfra.NewMockPeeringDB(t)
	pdb.Incompatible(true)
	c := NewClient(Config{URL: pdb.APIURL()}, WithRetry(time.Millisecond, 5))

	_, err := c.List(context.Background(), "net", url.Values{"since": {"10"}})
	var ce *CompatibilityError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Contains(t, ce.Message, "client version is incompatible")
	assert.Len(t, pdb.Requests("/api/net"), 1, "compatibility errors are not retried")
}

func TestClientStatusErrors(t *testing.T) {
	pdb := testinfra.NewMockPeeringDB(t)
	c := NewClient(Config{URL: pdb.APIURL()})

	_, err := c.List(context.Background(), "bogus", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NotFound))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Not found", se.Message)
}

func TestReadBodyForError(t *testing.T) {
	long := make([]byte, maxErrorBodySize+10)
	for i := range long {
		long[i] = 'x'
	}
	body := readBodyForError(bytes.NewReader(long))
	assert.Len(t, body, maxErrorBodySize+len("\n... (truncated)"))

	assert.Equal(t, "short", string(readBodyForError(bytes.NewReader([]byte("short")))))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "boom", errorMessage([]byte(`{"meta": {"error": "boom"}}`)))
	assert.Equal(t, "plain text", errorMessage([]byte("plain text\n")))
}
