package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/widgetd/internal/config"
	"github.com/roach88/widgetd/internal/logging"
	"github.com/roach88/widgetd/internal/widget"
)

// syncBuffer is a bytes.Buffer safe for the server's log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// startServe runs the serve command on a random port until the returned
// stop function is called. stop returns the command's error.
func startServe(t *testing.T, configPath string) (baseURL string, logs *syncBuffer, stop func() error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	logs = &syncBuffer{}
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(logs)

	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text"},
		ConfigPath:  configPath,
		Listener:    ln,
	}

	done := make(chan error, 1)
	go func() { done <- runServe(opts, cmd) }()

	baseURL = "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/widgets/all")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	var once sync.Once
	var result error
	stop = func() error {
		once.Do(func() {
			cancel()
			select {
			case result = <-done:
			case <-time.After(10 * time.Second):
				result = fmt.Errorf("serve did not stop")
			}
		})
		return result
	}
	t.Cleanup(func() { _ = stop() })
	return baseURL, logs, stop
}

func postWidget(t *testing.T, baseURL, body string) widget.Widget {
	t.Helper()
	resp, err := http.Post(baseURL+"/widgets", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var w widget.Widget
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&w))
	return w
}

func TestServeMemoryProfile(t *testing.T) {
	baseURL, logs, stop := startServe(t, "")

	a := postWidget(t, baseURL, `{"x":1,"y":1,"z":1,"width":10,"height":10}`)
	b := postWidget(t, baseURL, `{"x":2,"y":2,"z":1,"width":10,"height":10}`)
	assert.Equal(t, 1, b.Z)

	resp, err := http.Get(fmt.Sprintf("%s/widgets/%d", baseURL, a.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got widget.Widget
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 2, got.Z, "a was shifted up by the second insert")

	require.NoError(t, stop())
	assert.Contains(t, logs.String(), "server stopped gracefully")
}

func TestServeDBProfileKeepsWidgets(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "widgets.db")
	configPath := filepath.Join(dir, "widgetd.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`
profile: db
database:
  driver: sqlite3
  dsn: %s
log:
  level: debug
  format: json
`, dbPath)), 0644))

	baseURL, _, stop := startServe(t, configPath)
	first := postWidget(t, baseURL, `{"x":0,"y":0,"width":1,"height":1}`)
	require.NoError(t, stop())

	baseURL, _, stop = startServe(t, configPath)
	second := postWidget(t, baseURL, `{"x":0,"y":0,"width":1,"height":1}`)
	assert.Greater(t, second.ID, first.ID, "ids continue after a restart")
	assert.Equal(t, first.Z+1, second.Z)
	require.NoError(t, stop())
}

func TestServeBadConfig(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetErr(&bytes.Buffer{})
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text"},
		ConfigPath:  filepath.Join(t.TempDir(), "missing.yaml"),
	}

	err := runServe(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestBuildRepository_UnknownProfile(t *testing.T) {
	cfg := config.Default()
	cfg.Profile = "cloud"

	_, _, err := buildRepository(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown profile "cloud"`)
}

func TestBuildRepository_SeedsCounterFromDatabase(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Profile = config.ProfileDB
	cfg.Database.DSN = seedDatabase(t, 1, 2, 3)

	repo, closeRepo, err := buildRepository(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	defer closeRepo()

	w, err := repo.Create(ctx, widget.Request{
		X: widget.Int(0), Y: widget.Int(0), Width: widget.Int(1), Height: widget.Int(1),
	})
	require.NoError(t, err)
	assert.Equal(t, widget.ID(4), w.ID)
	assert.Equal(t, 4, w.Z)
}

func TestNewIDGenerator(t *testing.T) {
	ctx := context.Background()

	ids, closeIDs, err := newIDGenerator(ctx, config.IDs{Kind: config.IDsCounter}, 41)
	require.NoError(t, err)
	defer closeIDs()
	id, err := ids.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, widget.ID(42), id)

	_, _, err = newIDGenerator(ctx, config.IDs{Kind: "uuid"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown id generator "uuid"`)
}

func TestNewIDGenerator_RedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Grab a free port and close it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, _, err = newIDGenerator(ctx, config.IDs{Kind: config.IDsRedis, RedisAddr: addr}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}
