package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestAppError_StatusAndGRPCCodes(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
		code   codes.Code
	}{
		{BadRequest("x"), http.StatusBadRequest, codes.InvalidArgument},
		{Unauthorized("x"), http.StatusUnauthorized, codes.Unauthenticated},
		{Forbidden("x"), http.StatusForbidden, codes.PermissionDenied},
		{Conflict("x"), http.StatusConflict, codes.Aborted},
		{NotFound("x"), http.StatusNotFound, codes.NotFound},
		{Unprocessable("x"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{Internal("x"), http.StatusInternalServerError, codes.Internal},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind()), func(t *testing.T) {
			if got := tt.err.StatusCode(); got != tt.status {
				t.Errorf("StatusCode() = %d, want %d", got, tt.status)
			}
			if got := tt.err.GRPCCode(); got != tt.code {
				t.Errorf("GRPCCode() = %v, want %v", got, tt.code)
			}
		})
	}
}

func TestFrom(t *testing.T) {
	if From(nil) != nil {
		t.Fatal("From(nil) should be nil")
	}

	plain := errors.New("boom")
	wrapped := From(plain)
	if wrapped.Kind() != KindInternal {
		t.Errorf("kind = %s, want internal", wrapped.Kind())
	}
	if !errors.Is(wrapped, plain) {
		t.Error("cause should be reachable through errors.Is")
	}

	conflict := Conflict("pedido indisponível")
	if got := From(fmt.Errorf("accept: %w", conflict)); got != conflict {
		t.Errorf("From() should unwrap existing AppError, got %v", got)
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("missing", WithDetail("id", "o1")))
	if !Is(err, KindNotFound) {
		t.Error("expected not_found kind")
	}
	if Is(err, KindConflict) {
		t.Error("unexpected conflict kind")
	}
	if Is(errors.New("plain"), KindInternal) {
		t.Error("plain errors carry no kind")
	}
	if got := From(err).Details()["id"]; got != "o1" {
		t.Errorf("detail id = %v, want o1", got)
	}
}
