package thirdparty

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signedHandler 校验签名后交给 next，body 重新放回供 next 读取
func signedHandler(t *testing.T, secret string, next http.HandlerFunc) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		ts, err := strconv.ParseInt(r.Header.Get("X-Timestamp"), 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		canonical := Canonical(r.Method, r.URL.EscapedPath(), ts, r.Header.Get("X-Nonce"), body)
		if r.Header.Get("X-Api-Key") != "key" || !VerifyHMAC(secret, canonical, r.Header.Get("X-Signature")) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func TestPusher_SendJSON(t *testing.T) {
	t.Run("签名正确", func(t *testing.T) {
		ts := httptest.NewServer(signedHandler(t, "secret", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer ts.Close()

		p := NewPusher(nil, "key", "secret")
		code, body, err := p.SendJSON(context.Background(), ts.URL+"/hook", map[string]any{"x": 1})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"ok":true}`, string(body))
	})

	t.Run("无路径的地址按根路径签名", func(t *testing.T) {
		ts := httptest.NewServer(signedHandler(t, "secret", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		p := NewPusher(nil, "key", "secret")
		code, _, err := p.SendJSON(context.Background(), ts.URL, Event{Event: EventAlarmRaised})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("转义路径原样签名", func(t *testing.T) {
		ts := httptest.NewServer(signedHandler(t, "secret", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		p := NewPusher(nil, "key", "secret")
		code, _, err := p.SendJSON(context.Background(), ts.URL+"/hooks/bms%20a", Event{})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("5xx后重试并重新签名", func(t *testing.T) {
		var calls atomic.Int32
		ts := httptest.NewServer(signedHandler(t, "secret", func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		p := NewPusher(nil, "key", "secret")
		p.Backoff = []time.Duration{time.Millisecond}
		code, _, err := p.SendJSON(context.Background(), ts.URL+"/hook", Event{Event: EventAlarmRaised})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, code)
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("4xx不重试", func(t *testing.T) {
		var calls atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer ts.Close()

		p := NewPusher(nil, "key", "secret")
		code, _, err := p.SendJSON(context.Background(), ts.URL, Event{})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("重试耗尽", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		p := NewPusher(nil, "key", "secret")
		p.Retries, p.Backoff = 1, []time.Duration{time.Millisecond}
		_, _, err := p.SendJSON(context.Background(), ts.URL, Event{})
		assert.EqualError(t, err, "http 503")
	})
}
