package dictionary

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDictionary_LocalCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jmdict.json")
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The file exists, so no network access should happen.
	if err := EnsureDictionary(context.Background(), path); err != nil {
		t.Fatalf("EnsureDictionary failed with local file: %v", err)
	}
}

func tarball(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatalf("tar header: %v", err)
	}
	if _, err := tw.Write([]byte(body)); err != nil {
		t.Fatalf("tar write: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestEnsureDictionary_Download(t *testing.T) {
	archive := tarball(t, "jmdict-eng-common-3.6.1.json", `{"words":[{"id":"1","kanji":[{"text":"犬"}],"kana":[{"text":"いぬ"}],"sense":[]}]}`)

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release":
			fmt.Fprintf(w, `{"assets":[{"name":"jmdict-eng-3.6.1.json.tgz","browser_download_url":"%[1]s/wrong"},{"name":"jmdict-eng-common-3.6.1.json.tgz","browser_download_url":"%[1]s/asset.json.tgz"}]}`, srv.URL)
		case "/asset.json.tgz":
			w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	old := releaseAPI
	releaseAPI = srv.URL + "/release"
	defer func() { releaseAPI = old }()

	path := filepath.Join(t.TempDir(), "lexicon", "jmdict.json")
	if err := EnsureDictionary(context.Background(), path); err != nil {
		t.Fatalf("EnsureDictionary: %v", err)
	}

	lx, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("load downloaded lexicon: %v", err)
	}
	if lx.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", lx.Len())
	}
}

func TestEnsureDictionary_NoAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"assets":[]}`))
	}))
	defer srv.Close()

	old := releaseAPI
	releaseAPI = srv.URL
	defer func() { releaseAPI = old }()

	path := filepath.Join(t.TempDir(), "jmdict.json")
	if err := EnsureDictionary(context.Background(), path); err == nil {
		t.Fatal("expected error when release has no usable asset")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("no file should be written on failure, stat err = %v", err)
	}
}
