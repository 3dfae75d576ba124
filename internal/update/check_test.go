package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func serve(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCheckLatest_UpdateAvailable(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/mewbotorg/bastet/releases/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name": "v0.4.0", "name": "bastet 0.4.0"}`))
	})

	r := checkLatestWithBase(context.Background(), url, "v0.3.0", Repo)

	assert.NotNil(t, r)
	assert.Equal(t, "v0.4.0", r.Latest)
	assert.Equal(t, "v0.3.0", r.Current)
	assert.True(t, r.NeedsUpdate())
	assert.Equal(t, "go install github.com/mewbotorg/bastet/cmd/bastet@latest", r.UpdateURL)
}

func TestCheckLatest_UpToDate(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name": "v0.3.0"}`))
	})

	r := checkLatestWithBase(context.Background(), url, "0.3.0", Repo)

	assert.NotNil(t, r)
	assert.False(t, r.NeedsUpdate())
}

func TestCheckLatest_DevVersion(t *testing.T) {
	assert.Nil(t, CheckLatest(context.Background(), "dev", Repo))
}

func TestCheckLatest_Timeout(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`{"tag_name": "v0.4.0"}`))
	})

	assert.Nil(t, checkLatestWithBase(context.Background(), url, "v0.3.0", Repo))
}

func TestCheckLatest_Cancelled(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name": "v0.4.0"}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Nil(t, checkLatestWithBase(ctx, url, "v0.3.0", Repo))
}

func TestCheckLatest_NetworkError(t *testing.T) {
	assert.Nil(t, checkLatestWithBase(context.Background(), "http://127.0.0.1:1", "v0.3.0", Repo))
}

func TestCheckLatest_BadResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad json", http.StatusOK, `not json`},
		{"empty tag", http.StatusOK, `{"tag_name": ""}`},
		{"not found", http.StatusNotFound, `{"message": "Not Found"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := serve(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			assert.Nil(t, checkLatestWithBase(context.Background(), url, "v0.3.0", Repo))
		})
	}
}

func TestNeedsUpdate(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{"different versions", Result{Latest: "v0.4.0", Current: "v0.3.0"}, true},
		{"same version", Result{Latest: "v0.3.0", Current: "v0.3.0"}, false},
		{"missing v prefix", Result{Latest: "v0.3.0", Current: "0.3.0"}, false},
		{"dev version", Result{Latest: "v0.4.0", Current: "dev"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.NeedsUpdate())
		})
	}
}
