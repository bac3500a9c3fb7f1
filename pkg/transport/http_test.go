package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicedata/datacollector/pkg/envelope"
)

var testEnvelope = envelope.Envelope{Data: "e30=", Checksum: "123"}

func TestHTTPClientSend(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind Kind
		wantCode int
	}{
		{name: "ok", status: http.StatusOK},
		{name: "created", status: http.StatusCreated},
		{name: "no content is not success", status: http.StatusNoContent, wantKind: KindServerError, wantCode: 204},
		{name: "internal error", status: http.StatusInternalServerError, wantKind: KindServerError, wantCode: 500},
		{name: "not found", status: http.StatusNotFound, wantKind: KindServerError, wantCode: 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got envelope.Envelope
			var headers http.Header
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				headers = r.Header.Clone()
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"id":101}`))
			}))
			defer srv.Close()

			c := NewHTTPClient(Options{Endpoint: srv.URL, UserAgent: "DataCollector/1.0"})
			err := c.Send(context.Background(), testEnvelope)

			assert.Equal(t, testEnvelope, got)
			assert.Equal(t, "application/json", headers.Get("Content-Type"))
			assert.Equal(t, "DataCollector/1.0", headers.Get("User-Agent"))

			if tt.wantKind == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Equal(t, tt.wantCode, StatusCodeOf(err))
			assert.True(t, errors.Is(err, ErrServerError))
		})
	}
}

func TestHTTPClientInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, buf, err := hj.Hijack()
		require.NoError(t, err)
		defer conn.Close()
		_, _ = buf.WriteString("GARBAGE\r\n\r\n")
		_ = buf.Flush()
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{Endpoint: srv.URL})
	err := c.Send(context.Background(), testEnvelope)

	require.Error(t, err)
	assert.Equal(t, KindInvalidResponse, KindOf(err), "got %v", err)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
	assert.False(t, errors.Is(err, ErrServerError))
}

func TestHTTPClientNetworkError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := NewHTTPClient(Options{Endpoint: "http://" + addr})
	err = c.Send(context.Background(), testEnvelope)

	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestHTTPClientTimeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := NewHTTPClient(Options{Endpoint: srv.URL}).Send(ctx, testEnvelope)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestNewSelectsByScheme(t *testing.T) {
	s, err := New(Options{Endpoint: "https://example.com/posts"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPClient{}, s)

	s, err = New(Options{Endpoint: "mqtt://broker:1883", DeviceID: "abc"})
	require.NoError(t, err)
	require.IsType(t, &MQTTPublisher{}, s)
	assert.Equal(t, "devicedata/abc/power", s.(*MQTTPublisher).Topic())

	_, err = New(Options{Endpoint: "ftp://example.com"})
	assert.Error(t, err)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "server error: 500", (&Error{Kind: KindServerError, StatusCode: 500}).Error())
	assert.Equal(t, "invalid server response", (&Error{Kind: KindInvalidResponse}).Error())
}
