package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

// testManager points a Manager's client at a local test server by
// rewriting every outgoing request.
func testManager(t *testing.T, userHash string, handler http.HandlerFunc) *Manager {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := NewManager(userHash, zap.NewNop())
	m.client = srv.Client()
	m.client.Transport = &rewriteTransport{base: http.DefaultTransport, target: srv.URL}
	return m
}

type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	redirected, err := http.NewRequestWithContext(req.Context(), req.Method, rt.target, req.Body)
	if err != nil {
		return nil, err
	}
	redirected.Header = req.Header
	return rt.base.RoundTrip(redirected)
}

func TestUploadFile_SendsMultipartForm(t *testing.T) {
	var gotReqtype, gotName string
	var gotBody []byte
	m := testManager(t, "hash123", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		gotReqtype = r.FormValue("reqtype")
		if r.FormValue("userhash") != "hash123" {
			t.Errorf("userhash = %q", r.FormValue("userhash"))
		}
		f, hdr, err := r.FormFile("fileToUpload")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		gotName = hdr.Filename
		gotBody, _ = io.ReadAll(f)
		io.WriteString(w, "https://files.catbox.moe/abc.png\n")
	})

	path := filepath.Join(t.TempDir(), "pic.png")
	if err := os.WriteFile(path, []byte("imagedata"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	url, err := m.UploadFile(context.Background(), ServiceCatbox, path, "")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if url != "https://files.catbox.moe/abc.png" {
		t.Errorf("url = %q", url)
	}
	if gotReqtype != "fileupload" || gotName != "pic.png" || string(gotBody) != "imagedata" {
		t.Errorf("form = %q/%q/%q", gotReqtype, gotName, gotBody)
	}
}

func TestUploadFile_LitterboxLifetimeDefault(t *testing.T) {
	var gotTime string
	m := testManager(t, "", func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		gotTime = r.FormValue("time")
		io.WriteString(w, "https://litter.catbox.moe/x.png")
	})

	path := filepath.Join(t.TempDir(), "pic.png")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := m.UploadFile(context.Background(), ServiceLitterbox, path, "bogus"); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if gotTime != "24h" {
		t.Errorf("time = %q, want the 24h default", gotTime)
	}
}

func TestUploadFromURL(t *testing.T) {
	m := testManager(t, "", func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		if r.FormValue("reqtype") != "urlupload" {
			t.Errorf("reqtype = %q", r.FormValue("reqtype"))
		}
		if r.FormValue("url") != "https://example.com/a.png" {
			t.Errorf("url = %q", r.FormValue("url"))
		}
		io.WriteString(w, "https://files.catbox.moe/mirrored.png")
	})

	url, err := m.UploadFromURL(context.Background(), ServiceCatbox, "https://example.com/a.png")
	if err != nil {
		t.Fatalf("UploadFromURL: %v", err)
	}
	if url != "https://files.catbox.moe/mirrored.png" {
		t.Errorf("url = %q", url)
	}

	if _, err := m.UploadFromURL(context.Background(), ServiceLitterbox, "https://example.com/a.png"); err == nil {
		t.Error("litterbox URL upload must fail")
	}
}

func TestUpload_ServerError(t *testing.T) {
	m := testManager(t, "", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "What happened?", http.StatusPreconditionFailed)
	})

	path := filepath.Join(t.TempDir(), "pic.png")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := m.UploadFile(context.Background(), ServiceCatbox, path, ""); err == nil {
		t.Error("non-200 response must fail the upload")
	}
}

func TestDeleteFiles_RequiresAccount(t *testing.T) {
	m := NewManager("", zap.NewNop())
	if err := m.DeleteFiles(context.Background(), []string{"abc.png"}); !errors.Is(err, ErrNoAccount) {
		t.Errorf("DeleteFiles = %v, want ErrNoAccount", err)
	}
}

func TestMaxBytes(t *testing.T) {
	if n, err := MaxBytes(ServiceCatbox); err != nil || n != catboxMaxBytes {
		t.Errorf("catbox = %d/%v", n, err)
	}
	if _, err := MaxBytes("imgur"); !errors.Is(err, ErrUnknownService) {
		t.Errorf("unknown service err = %v", err)
	}
}
