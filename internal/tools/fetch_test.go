package tools

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentloop/internal/ui"
)

const samplePage = `<!doctype html>
<html><head><title>Gopher Facts</title><style>body{color:red}</style></head>
<body>
<h1>Gophers</h1>
<p>Gophers are   burrowing rodents.</p>
<script>alert("hidden")</script>
<ul><li>They dig.</li><li>They eat roots.</li></ul>
</body></html>`

func TestFetchURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	tool, err := FetchURL(Deps{AllowPrivateHosts: true, Log: testLogger()})
	require.NoError(t, err)

	res := run(t, tool, map[string]any{"url": srv.URL})
	assert.Contains(t, res.NextPrompt, "HTTP 200")
	assert.Contains(t, res.NextPrompt, "Gophers are burrowing rodents.")
	assert.Contains(t, res.NextPrompt, "They eat roots.")
	assert.NotContains(t, res.NextPrompt, "alert")
	assert.NotContains(t, res.NextPrompt, "color:red")

	card, ok := res.Render().(ui.Card)
	require.True(t, ok)
	assert.Equal(t, "Gopher Facts", card.Title)
}

func TestFetchURLErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nothing here"))
	}))
	defer srv.Close()

	tool, err := FetchURL(Deps{AllowPrivateHosts: true, Log: testLogger()})
	require.NoError(t, err)

	res := run(t, tool, map[string]any{"url": srv.URL + "/missing"})
	assert.Contains(t, res.NextPrompt, "Error: HTTP 404")
	assert.Contains(t, res.NextPrompt, "nothing here")
}

func TestFetchURLRejectsScheme(t *testing.T) {
	tool, err := FetchURL(Deps{Log: testLogger()})
	require.NoError(t, err)

	res := run(t, tool, map[string]any{"url": "file:///etc/passwd"})
	assert.Equal(t, "Error: URL must start with http:// or https://", res.NextPrompt)
}

func TestFetchURLBlocksPrivate(t *testing.T) {
	tool, err := FetchURL(Deps{Log: testLogger()})
	require.NoError(t, err)

	res := run(t, tool, map[string]any{"url": "http://127.0.0.1:9/"})
	assert.Contains(t, res.NextPrompt, "Error: blocked")
	assert.Contains(t, res.NextPrompt, "private/internal")
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.20.0.1", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fd00::1", true},
		{"8.8.8.8", false},
		{"2606:4700::1111", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isPrivateIP(net.ParseIP(tt.ip)), tt.ip)
	}
}

func TestHTMLText(t *testing.T) {
	title, text := htmlText(samplePage)
	assert.Equal(t, "Gopher Facts", title)
	assert.Equal(t, "Gophers\nGophers are burrowing rodents.\nThey dig.\nThey eat roots.", text)
}
