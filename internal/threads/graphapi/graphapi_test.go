package graphapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blacktop/threadpost/internal/threads"
)

var creds = threads.Credentials{UserID: "1784", AccessToken: "EAAGsecret"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/v1.0/", HTTPClient: srv.Client()})
}

func TestCreateContainer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1.0/1784/threads", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "EAAGsecret", r.PostForm.Get("access_token"))
		assert.Equal(t, "TEXT", r.PostForm.Get("media_type"))
		assert.Equal(t, "hello world", r.PostForm.Get("text"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c_123"}`))
	})

	id, err := c.CreateContainer(context.Background(), creds, threads.Params{
		{Key: "media_type", Value: "TEXT"},
		{Key: "text", Value: "hello world"},
	})
	require.NoError(t, err)
	assert.Equal(t, "c_123", id)
}

func TestContainerStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1.0/c_123", r.URL.Path)
		assert.Equal(t, "id,status,error_message", r.URL.Query().Get("fields"))
		assert.Equal(t, "EAAGsecret", r.URL.Query().Get("access_token"))
		_, _ = w.Write([]byte(`{"id":"c_123","status":"ERROR","error_message":"FAILED_DOWNLOADING_VIDEO"}`))
	})

	got, err := c.ContainerStatus(context.Background(), creds, "c_123")
	require.NoError(t, err)
	assert.Equal(t, threads.Container{ID: "c_123", Status: threads.StatusError, ErrorMessage: "FAILED_DOWNLOADING_VIDEO"}, got)
}

func TestPublishAndPermalink(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1.0/1784/threads_publish":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "c_123", r.PostForm.Get("creation_id"))
			_, _ = w.Write([]byte(`{"id":"p_1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1.0/p_1":
			assert.Equal(t, "id,permalink", r.URL.Query().Get("fields"))
			_, _ = w.Write([]byte(`{"id":"p_1","permalink":"https://www.threads.net/@me/post/abc"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	id, err := c.Publish(ctx, creds, "c_123")
	require.NoError(t, err)
	assert.Equal(t, "p_1", id)

	item, err := c.PublishedItem(ctx, creds, id)
	require.NoError(t, err)
	assert.Equal(t, "https://www.threads.net/@me/post/abc", item.Permalink)
}

func TestPublishingLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.0/1784/threads_publishing_limit", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("fields"), "reply_quota_usage")
		_, _ = w.Write([]byte(`{"data":[{
			"quota_usage": 4,
			"config": {"quota_total": 250, "quota_duration": 86400},
			"reply_quota_usage": 1,
			"reply_config": {"quota_total": 1000, "quota_duration": 86400}
		}]}`))
	})

	snap, err := c.PublishingLimit(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, threads.QuotaUsage{Usage: 4, Total: 250, Window: 24 * time.Hour}, snap.Post)
	assert.Equal(t, 999, snap.Reply.Remaining())
	assert.Equal(t, threads.QuotaUsage{}, snap.Delete)
}

func TestPublishingLimit_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := c.PublishingLimit(context.Background(), creds)
	var te threads.TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Message, "no quota data")
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","type":"THApiException","code":100,"error_subcode":2207052,"error_user_msg":"The media could not be fetched","fbtrace_id":"Axyz"}}`))
	})

	_, err := c.CreateContainer(context.Background(), creds, threads.Params{{Key: "media_type", Value: "IMAGE"}})
	var te threads.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "create container", te.Op)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Equal(t, 100, te.Code)
	assert.Equal(t, "THApiException; Invalid parameter; The media could not be fetched", te.Message)
	assert.Equal(t, threads.CodeTransport, threads.Code(err))
}

func TestAPIError_PlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Publish(context.Background(), creds, "c_1")
	var te threads.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.Equal(t, "Bad Gateway", te.Message)
}

func TestDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := c.Publish(context.Background(), creds, "c_1")
	var te threads.TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, err.Error(), "decode response")
}

func TestNetworkErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(Config{BaseURL: base})
	_, err := c.ContainerStatus(context.Background(), creds, "c_1")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), creds.AccessToken)
	assert.NotContains(t, err.Error(), "access_token")

	var te threads.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "container status", te.Op)
}

func TestCanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Publish(ctx, creds, "c_1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, threads.CodeCanceled, threads.Code(err))
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, defaultTimeout, c.http.Timeout)
	assert.Equal(t, DefaultBaseURL+"/a%2Fb/threads", c.endpoint("a/b", "threads"))
}
