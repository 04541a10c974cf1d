// ABOUTME: Tests for the Graph publisher: feed vs photos routing, idempotency keys, and error surfaces.
package publisher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPublishTextGoesToFeed(t *testing.T) {
	var gotPath, gotMessage, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotMessage = r.FormValue("message")
		gotKey = r.Header.Get("X-Idempotency-Key")
		w.Write([]byte(`{"id": "page_123"}`))
	}))
	defer srv.Close()

	c := NewGraphClient(srv.URL, "page-9", "tok")
	id, err := c.Publish(context.Background(), Post{Text: "hello world"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id != "page_123" {
		t.Errorf("unexpected post ID %q", id)
	}
	if gotPath != "/page-9/feed" {
		t.Errorf("expected feed edge, got %q", gotPath)
	}
	if gotMessage != "hello world" {
		t.Errorf("message not forwarded: %q", gotMessage)
	}
	if gotKey == "" {
		t.Error("expected an idempotency key")
	}
}

func TestPublishImageGoesToPhotos(t *testing.T) {
	var gotPath, gotURL, gotCaption string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotURL = r.FormValue("url")
		gotCaption = r.FormValue("caption")
		w.Write([]byte(`{"id": "photo_7"}`))
	}))
	defer srv.Close()

	c := NewGraphClient(srv.URL, "page-9", "tok")
	id, err := c.Publish(context.Background(), Post{Text: "caption", ImageRef: "https://cdn/img.png"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id != "photo_7" {
		t.Errorf("unexpected post ID %q", id)
	}
	if gotPath != "/page-9/photos" {
		t.Errorf("expected photos edge, got %q", gotPath)
	}
	if gotURL != "https://cdn/img.png" || gotCaption != "caption" {
		t.Errorf("image fields not forwarded: url=%q caption=%q", gotURL, gotCaption)
	}
}

func TestPublishRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewGraphClient(srv.URL, "page-9", "bad")
	if _, err := c.Publish(context.Background(), Post{Text: "hi"}); err == nil {
		t.Error("expected an error for a rejected publish")
	}
}

func TestPublishRejectionTruncatesOnRuneBoundary(t *testing.T) {
	// A three-byte rune straddles the 280-byte cap of the recorded body.
	body := strings.Repeat("x", 279) + "日本語"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, body, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewGraphClient(srv.URL, "page-9", "tok")
	_, err := c.Publish(context.Background(), Post{Text: "hi"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !utf8.ValidString(err.Error()) {
		t.Errorf("truncation split a rune: %q", err.Error())
	}
	if strings.Contains(err.Error(), "�") {
		t.Errorf("error contains a replacement character: %q", err.Error())
	}
}

func TestPublishEmptyPost(t *testing.T) {
	c := NewGraphClient("http://example.invalid", "p", "t")
	if _, err := c.Publish(context.Background(), Post{}); err == nil {
		t.Error("expected an error for an empty post")
	}
}

func TestPublishMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewGraphClient(srv.URL, "page-9", "tok")
	if _, err := c.Publish(context.Background(), Post{Text: "hi"}); err == nil {
		t.Error("expected an error when the response lacks a post ID")
	}
}
