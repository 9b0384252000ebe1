package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/generation"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/storage"
)

type fakeGenerator struct {
	result   domain.GenerationResult
	err      error
	calls    int
	req      domain.GenerationRequest
	strategy generation.Strategy
}

func (f *fakeGenerator) Generate(_ context.Context, req domain.GenerationRequest, strategy generation.Strategy) (domain.GenerationResult, error) {
	f.calls++
	f.req = req
	f.strategy = strategy
	if f.err != nil {
		return domain.GenerationResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeGenerator) DefaultStrategy() generation.Strategy {
	return generation.StrategyPrimary
}

type fakePublisher struct {
	workflows []domain.Workflow
	err       error
}

func (f *fakePublisher) PublishCreateWorkflow(_ context.Context, wf domain.Workflow) error {
	if f.err != nil {
		return f.err
	}
	f.workflows = append(f.workflows, wf)
	return nil
}

type fakeCatalog struct {
	workflows   map[string]domain.Workflow
	generations map[string][]domain.Generation
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		workflows:   map[string]domain.Workflow{},
		generations: map[string][]domain.Generation{},
	}
}

func (f *fakeCatalog) UpsertWorkflow(_ context.Context, wf domain.Workflow) error {
	f.workflows[wf.ID] = wf
	return nil
}

func (f *fakeCatalog) SaveGeneration(_ context.Context, gen domain.Generation) (bool, error) {
	f.generations[gen.WorkflowID] = append(f.generations[gen.WorkflowID], gen)
	return true, nil
}

func (f *fakeCatalog) ListWorkflows(_ context.Context, userID string) ([]domain.Workflow, error) {
	var out []domain.Workflow
	for _, wf := range f.workflows {
		if wf.UserID == userID {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Workflow(_ context.Context, id, userID string) (domain.Workflow, error) {
	wf, ok := f.workflows[id]
	if !ok || wf.UserID != userID {
		return domain.Workflow{}, domain.ErrNotFound
	}
	return wf, nil
}

func (f *fakeCatalog) WorkflowGenerations(_ context.Context, workflowID string) ([]domain.Generation, error) {
	return f.generations[workflowID], nil
}

func (f *fakeCatalog) LatestGeneration(_ context.Context, workflowID string) (*domain.Generation, error) {
	gens := f.generations[workflowID]
	if len(gens) == 0 {
		return nil, nil
	}
	gen := gens[0]
	return &gen, nil
}

func (f *fakeCatalog) CloseWorkflow(_ context.Context, id, userID string) (domain.Workflow, error) {
	wf, err := f.Workflow(context.Background(), id, userID)
	if err != nil {
		return domain.Workflow{}, err
	}
	wf.Status = domain.WorkflowStatusClosed
	f.workflows[id] = wf
	return wf, nil
}

type fakeBlobStore struct {
	objects map[string][]byte
	list    []storage.ObjectInfo
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.objects[key] = data
	return key, nil
}

func (f *fakeBlobStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (f *fakeBlobStore) DownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key + "?attachment", nil
}

func (f *fakeBlobStore) List(_ context.Context, _ string) ([]storage.ObjectInfo, error) {
	return f.list, nil
}

func newTestApp(gen *fakeGenerator, pub *fakePublisher, cat *fakeCatalog, blobs *fakeBlobStore) *App {
	return &App{
		Config: &infra.Config{
			JWTSecret:       "test-secret",
			RateLimitPerMin: 100,
		},
		Logger:    zerolog.Nop(),
		Generator: gen,
		Publisher: pub,
		Catalog:   cat,
		Blobs:     blobs,
	}
}

func authed(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

type filePart struct {
	field    string
	filename string
	mime     string
	data     []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mp.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	for _, file := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.filename+`"`)
		if file.mime != "" {
			header.Set("Content-Type", file.mime)
		}
		part, err := mp.CreatePart(header)
		if err != nil {
			t.Fatalf("create part %s: %v", file.field, err)
		}
		if _, err := part.Write(file.data); err != nil {
			t.Fatalf("write part %s: %v", file.field, err)
		}
	}
	if err := mp.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mp.FormDataContentType()
}

func doRequest(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func readBody(t *testing.T, rec *httptest.ResponseRecorder) []byte {
	t.Helper()
	data, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return data
}
