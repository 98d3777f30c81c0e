package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"triage_service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelAnswer = "疾病类型：银屑病\n置信度：85%\n主要症状：红斑、鳞屑\n严重程度：中度"

func chatReply(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return b
}

func testImage() domain.Image {
	return domain.Image{Filename: "lesion.png", MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
}

func newTestClient(endpoint, key string, timeout time.Duration) VisionClient {
	return NewDeepseekClient(DeepseekConfig{
		Endpoint: endpoint,
		APIKey:   key,
		Model:    "deepseek-vision",
		Timeout:  timeout,
		Retry:    DefaultRetryPolicy(time.Millisecond),
	}, quietLogger())
}

func TestDeepseekClient_SendsMultimodalRequest(t *testing.T) {
	var got ChatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write(chatReply(modelAnswer))
	}))
	defer srv.Close()

	content, err := newTestClient(srv.URL, "sk-test", time.Second).AnalyzeImage(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, modelAnswer, content)
	assert.Equal(t, "Bearer sk-test", auth)

	require.Len(t, got.Messages, 1)
	parts := got.Messages[0].Content
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].Type)
	assert.Contains(t, parts[0].Text, "银屑病")
	assert.Equal(t, "image_url", parts[1].Type)
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,"))
	assert.Equal(t, "deepseek-vision", got.Model)
}

func TestDeepseekClient_NotConfigured(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1", "", time.Second).AnalyzeImage(context.Background(), testImage())
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestDeepseekClient_RetriedServerErrorsYieldSameContent(t *testing.T) {
	var calls int32
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(chatReply(modelAnswer))
	}))
	defer flaky.Close()
	steady := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatReply(modelAnswer))
	}))
	defer steady.Close()

	afterRetries, err := newTestClient(flaky.URL, "k", time.Second).AnalyzeImage(context.Background(), testImage())
	require.NoError(t, err)
	immediate, err := newTestClient(steady.URL, "k", time.Second).AnalyzeImage(context.Background(), testImage())
	require.NoError(t, err)

	assert.Equal(t, immediate, afterRetries)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDeepseekClient_Timeout(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	content, err := newTestClient(srv.URL, "k", 50*time.Millisecond).AnalyzeImage(context.Background(), testImage())
	assert.ErrorIs(t, err, domain.ErrGatewayTimeout)
	assert.Empty(t, content)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "timeouts are not retried")
}

func TestDeepseekClient_RetriesShareOneDeadline(t *testing.T) {
	var calls int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
			return
		case <-time.After(120 * time.Millisecond):
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer slow.Close()

	client := NewDeepseekClient(DeepseekConfig{
		Endpoint: slow.URL,
		APIKey:   "k",
		Model:    "deepseek-vision",
		Timeout:  300 * time.Millisecond,
		Retry:    DefaultRetryPolicy(50 * time.Millisecond),
	}, quietLogger())

	start := time.Now()
	content, err := client.AnalyzeImage(context.Background(), testImage())
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, domain.ErrGatewayTimeout)
	assert.Empty(t, content)
	assert.Less(t, elapsed, time.Second)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestDeepseekClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, "k", time.Second).AnalyzeImage(context.Background(), testImage())
	assert.ErrorIs(t, err, domain.ErrBadGateway)
}

func TestDeepseekClient_ClientErrorRelayedVerbatim(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "bad", time.Second).AnalyzeImage(context.Background(), testImage())
	var upErr *domain.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusUnauthorized, upErr.StatusCode)
	assert.JSONEq(t, `{"error":"invalid api key"}`, string(upErr.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDeepseekClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "k", time.Second).AnalyzeImage(context.Background(), testImage())
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}
