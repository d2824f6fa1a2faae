package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.AICalls.WithLabelValues("fast").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.AICalls.WithLabelValues("fast")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.AICalls.WithLabelValues("fast")))
}

func TestPush_EmptyURLIsNoop(t *testing.T) {
	assert.NoError(t, New().Push(context.Background(), "", "job", "run"))
}

func TestPush_SendsToGateway(t *testing.T) {
	var path string
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.Items.WithLabelValues("seed", "ok").Add(3)
	require.NoError(t, m.Push(context.Background(), srv.URL, "directory", "abc"))
	assert.Equal(t, "/metrics/job/directory/run_id/abc", path)
	assert.NotEmpty(t, body)
}

func TestPush_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New().Push(context.Background(), srv.URL, "directory", "")
	assert.Error(t, err)
}
