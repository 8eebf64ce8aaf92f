package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
	"github.com/angelmondragon/timecredit-backend/pkg/pagination"
)

type sampleBody struct {
	Title   string `json:"title" validate:"required,max=5"`
	Credits int    `json:"credits" validate:"min=1"`
}

func jsonRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBody(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
		field   string
	}{
		{name: "valid", body: `{"title":"bread","credits":2}`},
		{name: "unknown field", body: `{"title":"bread","credits":2,"x":1}`, wantErr: true},
		{name: "trailing object", body: `{"title":"bread","credits":2}{}`, wantErr: true},
		{name: "malformed", body: `{"title":`, wantErr: true},
		{name: "wrong type", body: `{"title":"bread","credits":"two"}`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
		{name: "too long", body: `{"title":"sourdough","credits":2}`, wantErr: true, field: "title"},
		{name: "below min", body: `{"title":"bread","credits":0}`, wantErr: true, field: "credits"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var dest sampleBody
			err := DecodeJSONBody(jsonRequest(tc.body), &dest)
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if tc.field != "" {
				details, ok := pkgerrors.As(err).Details().(map[string]string)
				if !ok || details[tc.field] == "" {
					t.Fatalf("expected detail for %s, got %#v", tc.field, pkgerrors.As(err).Details())
				}
			}
		})
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&cursor=abc", nil)
	params, err := ParsePagination(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Limit != 10 || params.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", params)
	}

	params, err = ParsePagination(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil || params.Limit != pagination.DefaultLimit {
		t.Fatalf("expected default limit, got %+v err=%v", params, err)
	}

	for _, raw := range []string{"0", "101", "ten"} {
		if _, err := ParsePagination(httptest.NewRequest(http.MethodGet, "/?limit="+raw, nil)); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
			t.Fatalf("limit=%s: expected validation error, got %v", raw, err)
		}
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("bookingId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(req, "bookingId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s err=%v", id, got, err)
	}
	if _, err := ParseUUIDParam(req, "skillId"); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing param, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  héllo\x00 world  ", 0); got != "héllo world" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("héllo", 2); got != "hé" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
	if got := SanitizeString("line\nbreak", 0); got != "line\nbreak" {
		t.Fatalf("newlines should survive, got %q", got)
	}
}
