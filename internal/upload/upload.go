// Package upload pushes files to the catbox.moe hosting services.
// Catbox keeps files permanently; litterbox keeps them for a chosen
// lifetime. Both speak the same multipart form API and answer with the
// hosted URL as plain text.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	ServiceCatbox    = "catbox"
	ServiceLitterbox = "litterbox"

	catboxEndpoint    = "https://catbox.moe/user/api.php"
	litterboxEndpoint = "https://litterbox.catbox.moe/resources/internals/api.php"

	catboxMaxBytes    = 200 << 20
	litterboxMaxBytes = 1000 << 20
)

var (
	ErrUnknownService = errors.New("upload: unknown service")
	ErrFileTooLarge   = errors.New("upload: file exceeds the service size limit")
	ErrNoAccount      = errors.New("upload: operation requires a catbox account hash")
)

// litterbox lifetimes accepted by the API.
var litterboxLifetimes = map[string]bool{"1h": true, "12h": true, "24h": true, "72h": true}

// Manager uploads to either service with one shared HTTP client.
type Manager struct {
	client   *http.Client
	userHash string
	log      *zap.Logger
}

func NewManager(userHash string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		client:   &http.Client{Timeout: 5 * time.Minute},
		userHash: userHash,
		log:      log,
	}
}

// MaxBytes returns the service's size limit.
func MaxBytes(service string) (int64, error) {
	switch service {
	case ServiceCatbox:
		return catboxMaxBytes, nil
	case ServiceLitterbox:
		return litterboxMaxBytes, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
}

func endpoint(service string) (string, error) {
	switch service {
	case ServiceCatbox:
		return catboxEndpoint, nil
	case ServiceLitterbox:
		return litterboxEndpoint, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
}

// UploadFile pushes a local file. lifetime applies to litterbox only
// and defaults to 24h.
func (m *Manager) UploadFile(ctx context.Context, service, path, lifetime string) (string, error) {
	limit, err := MaxBytes(service)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("upload: stat %s: %w", path, err)
	}
	if info.Size() > limit {
		return "", fmt.Errorf("%w: %d bytes over %d", ErrFileTooLarge, info.Size(), limit)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("upload: open %s: %w", path, err)
	}
	defer f.Close()

	fields := m.baseFields(service, "fileupload", lifetime)
	return m.post(ctx, service, fields, filepath.Base(path), f)
}

// UploadFromURL asks catbox to mirror a remote URL. Litterbox has no
// URL endpoint.
func (m *Manager) UploadFromURL(ctx context.Context, service, rawURL string) (string, error) {
	if service == ServiceLitterbox {
		return "", fmt.Errorf("%w: litterbox cannot mirror URLs", ErrUnknownService)
	}
	if _, err := endpoint(service); err != nil {
		return "", err
	}

	fields := m.baseFields(service, "urlupload", "")
	fields["url"] = rawURL
	return m.post(ctx, service, fields, "", nil)
}

// DeleteFiles removes previously uploaded catbox files. Requires an
// account hash; anonymous uploads cannot be deleted.
func (m *Manager) DeleteFiles(ctx context.Context, names []string) error {
	if m.userHash == "" {
		return ErrNoAccount
	}
	fields := map[string]string{
		"reqtype":  "deletefiles",
		"userhash": m.userHash,
		"files":    strings.Join(names, " "),
	}
	_, err := m.post(ctx, ServiceCatbox, fields, "", nil)
	return err
}

// FetchToTemp downloads a remote file (a chat attachment, typically)
// into a temp file so it can be re-uploaded. The caller removes the
// file via the returned cleanup.
func (m *Manager) FetchToTemp(ctx context.Context, rawURL, name string) (string, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("upload: build fetch request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("upload: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("upload: fetch %s: status %d", rawURL, resp.StatusCode)
	}

	dir, err := os.MkdirTemp("", "vckeeper-upload-")
	if err != nil {
		return "", nil, fmt.Errorf("upload: temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("upload: create temp file: %w", err)
	}
	_, err = io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("upload: save %s: %w", rawURL, err)
	}
	return path, cleanup, nil
}

func (m *Manager) baseFields(service, reqtype, lifetime string) map[string]string {
	fields := map[string]string{"reqtype": reqtype}
	if service == ServiceCatbox && m.userHash != "" {
		fields["userhash"] = m.userHash
	}
	if service == ServiceLitterbox {
		if !litterboxLifetimes[lifetime] {
			lifetime = "24h"
		}
		fields["time"] = lifetime
	}
	return fields
}

func (m *Manager) post(ctx context.Context, service string, fields map[string]string, fileName string, file io.Reader) (string, error) {
	url, err := endpoint(service)
	if err != nil {
		return "", err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeForm(mw, fields, fileName, file)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return "", fmt.Errorf("upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %s request: %w", service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("upload: read %s response: %w", service, err)
	}
	text := strings.TrimSpace(string(body))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload: %s returned %d: %s", service, resp.StatusCode, text)
	}
	m.log.Info("upload finished", zap.String("service", service), zap.String("url", text))
	return text, nil
}

func writeForm(mw *multipart.Writer, fields map[string]string, fileName string, file io.Reader) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if file == nil {
		return nil
	}
	part, err := mw.CreateFormFile("fileToUpload", fileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}
