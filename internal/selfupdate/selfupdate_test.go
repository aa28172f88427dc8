package selfupdate

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const assetName = "tickle-go_linux_amd64.tar.gz"

func tarball(t *testing.T, name string, content []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0755, Size: int64(len(content)), Typeflag: tar.TypeReg}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

func releaseServer(t *testing.T, tag string, archive []byte, digest string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/release", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tag_name": tag,
			"assets": []map[string]string{{
				"name":                 assetName,
				"browser_download_url": server.URL + "/asset",
				"digest":               digest,
			}},
		})
	})
	mux.HandleFunc("/asset", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	})

	return server
}

func newTestUpdater(server *httptest.Server, exe string) *Updater {
	return &Updater{
		ReleaseURL: server.URL + "/release",
		AssetName:  assetName,
		BinaryName: "tickle",
		Executable: exe,
		Client:     server.Client(),
		Out:        io.Discard,
		Logger:     zerolog.Nop(),
	}
}

func sha(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestRunReplacesExecutable(t *testing.T) {
	archive := tarball(t, "tickle", []byte("new binary"))
	server := releaseServer(t, "v1.2.0", archive, "sha256:"+sha(archive))

	exe := filepath.Join(t.TempDir(), "tickle")
	require.NoError(t, os.WriteFile(exe, []byte("old binary"), 0755))

	err := newTestUpdater(server, exe).Run(context.Background(), "1.1.0", false, true)

	require.NoError(t, err)
	data, err := os.ReadFile(exe)
	require.NoError(t, err)
	assert.Equal(t, "new binary", string(data))

	_, err = os.Stat(exe + ".old")
	assert.True(t, os.IsNotExist(err))
}

func TestRunKeepsOldBinaryWhenDeclined(t *testing.T) {
	archive := tarball(t, "tickle", []byte("new binary"))
	server := releaseServer(t, "v1.2.0", archive, "sha256:"+sha(archive))

	exe := filepath.Join(t.TempDir(), "tickle")
	require.NoError(t, os.WriteFile(exe, []byte("old binary"), 0755))

	updater := newTestUpdater(server, exe)
	updater.Confirm = func(string) bool { return false }

	require.NoError(t, updater.Run(context.Background(), "v1.1.0", false, false))

	old, err := os.ReadFile(exe + ".old")
	require.NoError(t, err)
	assert.Equal(t, "old binary", string(old))
}

func TestRunFailures(t *testing.T) {
	archive := tarball(t, "tickle", []byte("new binary"))
	wrongName := tarball(t, "other", []byte("new binary"))

	testCases := []struct {
		name        string
		version     string
		tag         string
		archive     []byte
		digest      string
		expectedErr string
	}{
		{"up to date", "v1.2.0", "v1.2.0", archive, "sha256:" + sha(archive), "already up to date"},
		{"invalid tag", "v1.0.0", "latest", archive, "sha256:" + sha(archive), "invalid version format"},
		{"missing checksum", "v1.0.0", "v1.2.0", archive, "", "could not find checksum"},
		{"checksum mismatch", "v1.0.0", "v1.2.0", archive, "sha256:deadbeef", "checksum mismatch"},
		{"binary missing", "v1.0.0", "v1.2.0", wrongName, "sha256:" + sha(wrongName), "binary not found"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := releaseServer(t, tc.tag, tc.archive, tc.digest)
			exe := filepath.Join(t.TempDir(), "tickle")
			require.NoError(t, os.WriteFile(exe, []byte("old binary"), 0755))

			err := newTestUpdater(server, exe).Run(context.Background(), tc.version, false, true)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectedErr)

			data, readErr := os.ReadFile(exe)
			require.NoError(t, readErr)
			assert.Equal(t, "old binary", string(data))
		})
	}
}

func TestRunDryRun(t *testing.T) {
	archive := tarball(t, "tickle", []byte("new binary"))
	server := releaseServer(t, "v2.0.0", archive, "sha256:"+sha(archive))

	exe := filepath.Join(t.TempDir(), "tickle")
	require.NoError(t, os.WriteFile(exe, []byte("old binary"), 0755))

	require.NoError(t, newTestUpdater(server, exe).Run(context.Background(), "v1.0.0", true, false))

	data, err := os.ReadFile(exe)
	require.NoError(t, err)
	assert.Equal(t, "old binary", string(data))
}
