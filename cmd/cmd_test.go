package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/dwellist/internal/app"
	"github.com/JakeFAU/dwellist/internal/config"
)

func TestMain(m *testing.M) {
	newApp = func(ctx context.Context, cfg config.Config) (*app.App, error) {
		return app.New(ctx, cfg, app.WithLogger(zap.NewNop()))
	}
	os.Exit(m.Run())
}

func writeConfig(t *testing.T, baseURL, csvPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf(`
site:
  base_url: %s
store:
  path: %s
diagnostics:
  driver: none
crawler:
  rate_limit_rps: 0
`, baseURL, csvPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestColumnsCommand(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "listings.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("image_2,room_1_price,id,title,image_1\nb,500,1,Room,a\n"), 0o600))

	out, err := execute(t, "columns", "--config", writeConfig(t, "https://rooms.example", csvPath))
	require.NoError(t, err)
	assert.Equal(t, "id\ntitle\nroom_1_price\nimage_1\nimage_2\n", out)
}

func TestCrawlCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/flatshare/search.pl", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body><p class="navcurrent"><strong>1-1</strong> of <strong>1</strong></p>
<article class="panel-listing-result"><a href="/flatshare/flatshare_detail.pl?flatshare_id=5">Room</a></article></body></html>`)
	})
	mux.HandleFunc("/flatshare/flatshare_detail.pl", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body><div id="listing_heading"><h1>Attic room</h1></div>
<ul class="room-list"><li><strong class="room-list__price">£100 pw</strong> <small>(single)</small></li></ul></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	csvPath := filepath.Join(t.TempDir(), "listings.csv")
	out, err := execute(t, "crawl", "--limit", "10", "--config", writeConfig(t, srv.URL, csvPath))
	require.NoError(t, err)
	assert.Contains(t, out, "1 new")

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Attic room")
	assert.Contains(t, string(raw), "433")
}

func TestCrawlCommandSearchUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := execute(t, "crawl", "--config", writeConfig(t, srv.URL, filepath.Join(t.TempDir(), "l.csv")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search results could not be fetched")
}

func TestInvalidConfigFailsBeforeRunning(t *testing.T) {
	_, err := execute(t, "columns", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
