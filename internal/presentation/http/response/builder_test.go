package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/NovaByteCorp/deliverypro/pkg/errorbank"
)

func TestBuilder(t *testing.T) {
	tests := []struct {
		name       string
		build      func(b *Builder) error
		requestID  string
		wantStatus int
		wantOK     bool
		wantKind   string
		wantMeta   map[string]any
	}{
		{
			name: "success with meta",
			build: func(b *Builder) error {
				return b.WithData([]string{"a"}).WithMeta("count", 1).Build()
			},
			wantStatus: http.StatusOK,
			wantOK:     true,
			wantMeta:   map[string]any{"count": float64(1)},
		},
		{
			name: "created",
			build: func(b *Builder) error {
				return b.WithStatus(http.StatusCreated).WithData(map[string]string{"id": "o-1"}).Build()
			},
			wantStatus: http.StatusCreated,
			wantOK:     true,
		},
		{
			name: "status from error kind",
			build: func(b *Builder) error {
				return b.WithStatus(http.StatusCreated).WithError(errorbank.Conflict("pedido já aceito")).Build()
			},
			requestID:  "req-1",
			wantStatus: http.StatusConflict,
			wantKind:   string(errorbank.KindConflict),
			wantMeta:   map[string]any{"request_id": "req-1"},
		},
		{
			name: "plain error is internal",
			build: func(b *Builder) error {
				return b.WithError(errors.New("db down")).Build()
			},
			wantStatus: http.StatusInternalServerError,
			wantKind:   string(errorbank.KindInternal),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			if tt.requestID != "" {
				c.Response().Header().Set(echo.HeaderXRequestID, tt.requestID)
			}

			if err := tt.build(New(c)); err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var env Envelope[json.RawMessage]
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Success != tt.wantOK {
				t.Fatalf("success = %v", env.Success)
			}
			if tt.wantKind != "" && (env.Error == nil || env.Error.Kind != tt.wantKind) {
				t.Fatalf("error = %+v, want kind %s", env.Error, tt.wantKind)
			}
			if tt.wantOK && env.Error != nil {
				t.Fatalf("unexpected error body %+v", env.Error)
			}
			for k, v := range tt.wantMeta {
				if env.Meta[k] != v {
					t.Fatalf("meta[%s] = %v, want %v", k, env.Meta[k], v)
				}
			}
		})
	}
}

func TestBuilderNoContent(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)

	if err := New(c).WithStatus(http.StatusNoContent).Build(); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}
