package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"server/internal/domain"
)

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "test-key",
		ImageModel: "image-model",
		TextModel:  "text-model",
		HTTPClient: &http.Client{Transport: rt},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestGenerateImageReturnsFirstInlinePayload(t *testing.T) {
	want := []byte{0x89, 0x50, 0x4e, 0x47}
	var captured geminiGenerateContentRequest
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if !strings.Contains(r.URL.Path, "image-model") {
			t.Fatalf("request path = %q, want image model endpoint", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		payload := base64.StdEncoding.EncodeToString(want)
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"mimeType":"image/png","data":"`+payload+`"}}]}}]}`), nil
	})

	got, err := client.GenerateImage(context.Background(), "render it", []InlineImage{
		{MIME: "image/jpeg", Data: []byte("sketch")},
		{MIME: "image/png", Data: []byte("material")},
	}, ImageConfig{AspectRatio: "21:9", ImageSize: "1K"})
	if err != nil {
		t.Fatalf("GenerateImage returned error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("image bytes = %v, want %v", got, want)
	}

	parts := captured.Contents[0].Parts
	if len(parts) != 3 {
		t.Fatalf("request parts = %d, want 3 (text + 2 images)", len(parts))
	}
	if parts[0].Text != "render it" {
		t.Fatalf("prompt = %q", parts[0].Text)
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MimeType != "image/jpeg" {
		t.Fatal("first inline image missing or wrong mime")
	}
	if captured.GenerationConfig == nil || captured.GenerationConfig.ImageConfig.AspectRatio != "21:9" {
		t.Fatal("image config not forwarded")
	}
	if len(captured.GenerationConfig.ResponseModalities) != 1 || captured.GenerationConfig.ResponseModalities[0] != "IMAGE" {
		t.Fatalf("response modalities = %v", captured.GenerationConfig.ResponseModalities)
	}
}

func TestGenerateImageEmptyResponseIsGenerationEmpty(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"no image today"}]}}]}`), nil
	})

	_, err := client.GenerateImage(context.Background(), "render", nil, ImageConfig{})
	if !errors.Is(err, domain.ErrGenerationEmpty) {
		t.Fatalf("err = %v, want ErrGenerationEmpty", err)
	}
}

func TestGenerateImageSurfacesAPIError(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusTooManyRequests, `{"error":{"code":429,"message":"resource exhausted"}}`), nil
	})

	_, err := client.GenerateImage(context.Background(), "render", nil, ImageConfig{})
	if err == nil || !strings.Contains(err.Error(), "resource exhausted") {
		t.Fatalf("err = %v, want api message", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no internal retry)", calls)
	}
}

func TestDescribeReturnsTextParts(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if !strings.Contains(r.URL.Path, "text-model") {
			t.Fatalf("request path = %q, want text model endpoint", r.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"low-top profile,"},{"text":"rounded toe box"}]}}]}`), nil
	})

	got, err := client.Describe(context.Background(), "describe the geometry", InlineImage{MIME: "image/jpeg", Data: []byte("sketch")})
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	want := "low-top profile,\nrounded toe box"
	if got != want {
		t.Fatalf("description = %q, want %q", got, want)
	}
}

func TestDescribeEmptyTextIsError(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"candidates":[]}`), nil
	})

	if _, err := client.Describe(context.Background(), "describe", InlineImage{}); err == nil {
		t.Fatal("expected error for empty description")
	}
}
