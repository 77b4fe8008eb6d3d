package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/heimdex/dsync/internal/remote"
)

type fakeTarget struct{}

func (fakeTarget) Team() string { return "acme" }
func (fakeTarget) Slug() string { return "cats" }

type fakeTransport struct {
	mu        sync.Mutex
	requests  []remote.Request
	puts      map[string]string
	putErrs   []error // consumed one per PutObject call
	block     []string
	omit      []string // left out of the register response entirely
	registerE error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{puts: map[string]string{}}
}

func (f *fakeTransport) JSON(ctx context.Context, req remote.Request, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	switch {
	case req.Path == registerPath:
		if f.registerE != nil {
			return f.registerE
		}
		body := req.Body.(remote.RegisterUploadRequest)
		resp := out.(*remote.RegisterUploadResponse)
		for i, item := range body.Items {
			if contains(f.omit, item.Name) {
				continue
			}
			if contains(f.block, item.Name) {
				resp.BlockedItems = append(resp.BlockedItems, remote.BlockedItem{Name: item.Name, Path: item.Path, Reason: "ALREADY_EXISTS"})
				continue
			}
			resp.Items = append(resp.Items, remote.RegisteredItem{
				ID:    int64(i + 1),
				Name:  item.Name,
				Path:  item.Path,
				Slots: []remote.RegisteredSlot{{SlotName: "0", FileName: item.Name, UploadID: "u-" + item.Name}},
			})
		}
	case strings.HasSuffix(req.Path, "/sign"):
		out.(*remote.SignedUpload).UploadURL = "https://storage.test/" + req.Params["upload_id"]
	}
	return nil
}

func (f *fakeTransport) PutObject(ctx context.Context, signedURL string, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		if err != nil {
			return err
		}
	}
	f.puts[signedURL] = string(data)
	return nil
}

func (f *fakeTransport) count(suffix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasSuffix(r.Path, suffix) {
			n++
		}
	}
	return n
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestHandler_PrepareDoesNotTouchNetwork(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", "aaaa")
	b := writeFile(t, dir, "b.jpg", "bb")

	transport := newFakeTransport()
	h := NewHandler(transport, fakeTarget{}, []LocalFile{NewLocalFile(a), NewLocalFile(b)}, Config{})

	if err := h.Prepare(); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(transport.requests) != 0 {
		t.Fatalf("Prepare() sent %d requests", len(transport.requests))
	}
	p := h.Progress()
	if p.Total != 2 || p.BytesTotal != 6 {
		t.Errorf("progress = %+v", p)
	}
	if h.PendingCount() != 2 {
		t.Errorf("PendingCount() = %d", h.PendingCount())
	}
}

func TestHandler_PrepareRejectsDuplicateDestination(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", "a")
	other := filepath.Join(dir, "sub")
	os.MkdirAll(other, 0755)
	b := writeFile(t, other, "a.jpg", "b")

	h := NewHandler(newFakeTransport(), fakeTarget{}, []LocalFile{NewLocalFile(a), NewLocalFile(b)}, Config{})
	if err := h.Prepare(); err == nil {
		t.Fatal("expected error for two files with the same destination")
	}
}

func TestHandler_PrepareMissingFile(t *testing.T) {
	h := NewHandler(newFakeTransport(), fakeTarget{}, []LocalFile{NewLocalFile("/does/not/exist.jpg")}, Config{})
	if err := h.Prepare(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHandler_Upload(t *testing.T) {
	dir := t.TempDir()
	files := []LocalFile{
		NewLocalFile(writeFile(t, dir, "a.jpg", "aaaa")),
		{LocalPath: writeFile(t, dir, "b.mp4", "bb"), Path: "videos", FPS: 2},
		NewLocalFile(writeFile(t, dir, "c.jpg", "c")),
	}

	transport := newFakeTransport()
	transport.block = []string{"c.jpg"}
	h := NewHandler(transport, fakeTarget{}, files, Config{Workers: 2})

	var mu sync.Mutex
	var last Progress
	sent := map[string]int64{}
	err := h.Upload(context.Background(), true,
		func(p Progress) { mu.Lock(); last = p; mu.Unlock() },
		func(fp FileProgress) { mu.Lock(); sent[fp.Name] = fp.Sent; mu.Unlock() },
	)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if transport.count("register_upload") != 1 {
		t.Errorf("register calls = %d, want 1", transport.count("register_upload"))
	}
	if transport.count("/confirm") != 2 {
		t.Errorf("confirm calls = %d, want 2", transport.count("/confirm"))
	}
	if transport.puts["https://storage.test/u-a.jpg"] != "aaaa" {
		t.Errorf("a.jpg body = %q", transport.puts["https://storage.test/u-a.jpg"])
	}
	if last.Completed != 2 || last.Blocked != 1 || last.BytesSent != 6 {
		t.Errorf("final progress = %+v", last)
	}
	if sent["b.mp4"] != 2 {
		t.Errorf("file callback for b.mp4 = %d", sent["b.mp4"])
	}
	if len(h.Blocked()) != 1 || h.Blocked()[0].Name != "c.jpg" {
		t.Errorf("Blocked() = %+v", h.Blocked())
	}
	if h.Err() != nil {
		t.Errorf("Err() = %v", h.Err())
	}

	reg := transport.requests[0].Body.(remote.RegisterUploadRequest)
	if reg.DatasetSlug != "cats" {
		t.Errorf("dataset slug = %q", reg.DatasetSlug)
	}
	if reg.Items[1].Path != "/videos" || reg.Items[1].Slots[0].FPS != 2 {
		t.Errorf("registered item = %+v", reg.Items[1])
	}
}

func TestHandler_UploadRetriesRetryableErrors(t *testing.T) {
	dir := t.TempDir()
	transport := newFakeTransport()
	transport.putErrs = []error{
		&remote.APIError{StatusCode: http.StatusServiceUnavailable},
		&remote.APIError{StatusCode: http.StatusTooManyRequests},
	}

	h := NewHandler(transport, fakeTarget{}, []LocalFile{NewLocalFile(writeFile(t, dir, "a.jpg", "a"))}, Config{})
	h.delay = 0
	if err := h.Upload(context.Background(), false, nil, nil); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if transport.count("/sign") != 3 {
		t.Errorf("sign calls = %d, want 3", transport.count("/sign"))
	}
	if len(h.Errors()) != 0 {
		t.Errorf("Errors() = %v", h.Errors())
	}
}

func TestHandler_UploadPermanentFailure(t *testing.T) {
	dir := t.TempDir()
	transport := newFakeTransport()
	transport.putErrs = []error{&remote.APIError{StatusCode: http.StatusForbidden}}

	h := NewHandler(transport, fakeTarget{}, []LocalFile{NewLocalFile(writeFile(t, dir, "a.jpg", "a"))}, Config{})
	h.delay = 0
	if err := h.Upload(context.Background(), true, nil, nil); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if transport.count("/sign") != 1 {
		t.Errorf("sign calls = %d, want 1", transport.count("/sign"))
	}
	errs := h.Errors()
	if len(errs) != 1 {
		t.Fatalf("Errors() = %v", errs)
	}
	var apiErr *remote.APIError
	if !errors.As(h.Err(), &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("Err() = %v", h.Err())
	}
	if h.Progress().Failed != 1 {
		t.Errorf("progress = %+v", h.Progress())
	}
}

func TestHandler_UploadRegisterFailure(t *testing.T) {
	dir := t.TempDir()
	transport := newFakeTransport()
	transport.registerE = &remote.APIError{StatusCode: http.StatusBadRequest}

	h := NewHandler(transport, fakeTarget{}, []LocalFile{NewLocalFile(writeFile(t, dir, "a.jpg", "a"))}, Config{})
	if err := h.Upload(context.Background(), true, nil, nil); err == nil {
		t.Fatal("expected registration error")
	}
	if transport.count("/sign") != 0 {
		t.Error("no file should be signed after a failed registration")
	}
}

func TestHandler_UploadFailsFilesMissingFromRegistration(t *testing.T) {
	dir := t.TempDir()
	files := []LocalFile{
		NewLocalFile(writeFile(t, dir, "a.jpg", "aaaa")),
		NewLocalFile(writeFile(t, dir, "b.jpg", "bb")),
		NewLocalFile(writeFile(t, dir, "c.jpg", "c")),
	}

	transport := newFakeTransport()
	transport.omit = []string{"b.jpg"}
	transport.block = []string{"c.jpg"}
	h := NewHandler(transport, fakeTarget{}, files, Config{})
	if err := h.Upload(context.Background(), true, nil, nil); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if transport.count("/confirm") != 1 {
		t.Errorf("confirm calls = %d, want 1", transport.count("/confirm"))
	}
	p := h.Progress()
	if p.Completed != 1 || p.Failed != 1 || p.Blocked != 1 {
		t.Errorf("progress = %+v, want 1 completed, 1 failed, 1 blocked", p)
	}
	errs := h.Errors()
	if len(errs) != 1 || errs[0].File.RemoteName() != "b.jpg" {
		t.Fatalf("Errors() = %v, want only b.jpg", errs)
	}
	if !errors.Is(h.Err(), ErrNotRegistered) {
		t.Errorf("Err() = %v, want ErrNotRegistered", h.Err())
	}
}

func TestHandler_UploadEmptyRegistration(t *testing.T) {
	dir := t.TempDir()
	transport := newFakeTransport()
	transport.omit = []string{"a.jpg"}

	h := NewHandler(transport, fakeTarget{}, []LocalFile{NewLocalFile(writeFile(t, dir, "a.jpg", "a"))}, Config{})
	if err := h.Upload(context.Background(), false, nil, nil); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if transport.count("/sign") != 0 {
		t.Errorf("sign calls = %d, want 0", transport.count("/sign"))
	}
	if h.Progress().Failed != 1 || h.Err() == nil {
		t.Errorf("progress = %+v, Err() = %v", h.Progress(), h.Err())
	}
}

func TestLocalFile_RemotePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "/"},
		{".", "/"},
		{"a/b", "/a/b"},
		{"/a/b/", "/a/b"},
	}
	for _, tt := range tests {
		f := LocalFile{LocalPath: "/tmp/x.jpg", Path: tt.path}
		if got := f.RemotePath(); got != tt.want {
			t.Errorf("RemotePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
