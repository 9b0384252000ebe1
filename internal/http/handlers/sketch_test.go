package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"server/internal/domain"
	"server/internal/generation"
)

func sketchRequest(t *testing.T, fields map[string]string, files ...filePart) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, "/sketch-to-image/shoe", body)
	req.Header.Set("Content-Type", contentType)
	return authed(req, "u1")
}

func sketchFile() filePart {
	return filePart{field: "file", filename: "sketch.jpg", mime: "image/jpeg", data: []byte("sketch-bytes")}
}

func TestSketchToShoeReturnsImage(t *testing.T) {
	gen := &fakeGenerator{result: domain.GenerationResult{ImageBytes: []byte("png-bytes")}}
	app := newTestApp(gen, &fakePublisher{}, newFakeCatalog(), newFakeBlobStore())

	req := sketchRequest(t, map[string]string{"workflow_id": "wf1", "material_id": "suede-07"}, sketchFile())
	rec := doRequest(app.SketchToShoe, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, readBody(t, rec))
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("content type = %q", got)
	}
	if got := rec.Header().Get("X-Strategy"); got != "primary" {
		t.Fatalf("X-Strategy = %q", got)
	}
	if string(readBody(t, rec)) != "png-bytes" {
		t.Fatal("response body is not the generated image")
	}
	if gen.req.UserID != "u1" || gen.req.WorkflowID != "wf1" || gen.req.MaterialID != "suede-07" {
		t.Fatalf("generator request = %+v", gen.req)
	}
	if string(gen.req.SketchBytes) != "sketch-bytes" || gen.req.SketchMIME != "image/jpeg" {
		t.Fatalf("sketch = %q (%s)", gen.req.SketchBytes, gen.req.SketchMIME)
	}
}

func TestSketchToShoeReportsFallbackStrategy(t *testing.T) {
	gen := &fakeGenerator{result: domain.GenerationResult{ImageBytes: []byte("png"), UsedFallback: true}}
	app := newTestApp(gen, &fakePublisher{}, newFakeCatalog(), newFakeBlobStore())

	req := sketchRequest(t, map[string]string{"workflow_id": "wf1"}, sketchFile())
	req.Header.Set("X-Strategy", "fallback")
	rec := doRequest(app.SketchToShoe, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Strategy"); got != "fallback" {
		t.Fatalf("X-Strategy = %q", got)
	}
	if gen.strategy != generation.StrategyFallback {
		t.Fatalf("strategy passed through = %q", gen.strategy)
	}
}

func TestSketchToShoeForwardsMaterialFile(t *testing.T) {
	gen := &fakeGenerator{result: domain.GenerationResult{ImageBytes: []byte("png")}}
	app := newTestApp(gen, &fakePublisher{}, newFakeCatalog(), newFakeBlobStore())

	material := filePart{field: "material", filename: "material.png", mime: "image/png", data: []byte("material-bytes")}
	req := sketchRequest(t, map[string]string{"workflow_id": "wf1", "material_id": "m1"}, sketchFile(), material)
	rec := doRequest(app.SketchToShoe, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if string(gen.req.MaterialBytes) != "material-bytes" || gen.req.MaterialMIME != "image/png" {
		t.Fatalf("material = %q (%s)", gen.req.MaterialBytes, gen.req.MaterialMIME)
	}
}

func TestSketchToShoeRejectsMissingFile(t *testing.T) {
	gen := &fakeGenerator{}
	app := newTestApp(gen, &fakePublisher{}, newFakeCatalog(), newFakeBlobStore())

	req := sketchRequest(t, map[string]string{"workflow_id": "wf1"})
	rec := doRequest(app.SketchToShoe, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if gen.calls != 0 {
		t.Fatal("generator called without a sketch")
	}
}

func TestSketchToShoeRejectsNonImageFile(t *testing.T) {
	gen := &fakeGenerator{}
	app := newTestApp(gen, &fakePublisher{}, newFakeCatalog(), newFakeBlobStore())

	file := filePart{field: "file", filename: "sketch.txt", mime: "text/plain", data: []byte("just words")}
	req := sketchRequest(t, map[string]string{"workflow_id": "wf1"}, file)
	rec := doRequest(app.SketchToShoe, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if gen.calls != 0 {
		t.Fatal("generator called with a non-image")
	}
}

func TestSketchToShoeRejectsMissingWorkflowID(t *testing.T) {
	app := newTestApp(&fakeGenerator{}, &fakePublisher{}, newFakeCatalog(), newFakeBlobStore())

	req := sketchRequest(t, map[string]string{}, sketchFile())
	rec := doRequest(app.SketchToShoe, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSketchToShoeRejectsUnknownStrategy(t *testing.T) {
	gen := &fakeGenerator{}
	app := newTestApp(gen, &fakePublisher{}, newFakeCatalog(), newFakeBlobStore())

	req := sketchRequest(t, map[string]string{"workflow_id": "wf1"}, sketchFile())
	req.Header.Set("X-Strategy", "turbo")
	rec := doRequest(app.SketchToShoe, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if gen.calls != 0 {
		t.Fatal("generator called with an unknown strategy")
	}
}

func TestSketchToShoeMapsQuotaExceeded(t *testing.T) {
	gen := &fakeGenerator{err: domain.ErrQuotaExceeded}
	app := newTestApp(gen, &fakePublisher{}, newFakeCatalog(), newFakeBlobStore())

	req := sketchRequest(t, map[string]string{"workflow_id": "wf1"}, sketchFile())
	rec := doRequest(app.SketchToShoe, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestSketchToShoeMapsGenerationFailure(t *testing.T) {
	for _, failure := range []error{domain.ErrGenerationEmpty, fmt.Errorf("%w: boom", domain.ErrGenerationFailed)} {
		gen := &fakeGenerator{err: failure}
		app := newTestApp(gen, &fakePublisher{}, newFakeCatalog(), newFakeBlobStore())

		req := sketchRequest(t, map[string]string{"workflow_id": "wf1"}, sketchFile())
		rec := doRequest(app.SketchToShoe, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%v: status = %d, want 500", failure, rec.Code)
		}
	}
}

func TestSketchToShoeRequiresUser(t *testing.T) {
	app := newTestApp(&fakeGenerator{}, &fakePublisher{}, newFakeCatalog(), newFakeBlobStore())

	body, contentType := multipartBody(t, map[string]string{"workflow_id": "wf1"}, sketchFile())
	req := httptest.NewRequest(http.MethodPost, "/sketch-to-image/shoe", body)
	req.Header.Set("Content-Type", contentType)
	rec := doRequest(app.SketchToShoe, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
