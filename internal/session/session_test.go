package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/clientstate"
	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/lifecycle"
)

const secret = "test-secret"

type mockOverrides struct {
	GetStringFunc func(ctx context.Context, sessionID string, key clientstate.Key) (string, error)
}

func (m *mockOverrides) GetString(ctx context.Context, sessionID string, key clientstate.Key) (string, error) {
	if m.GetStringFunc != nil {
		return m.GetStringFunc(ctx, sessionID, key)
	}
	return "", nil
}

func mustToken(t *testing.T, id string, role entity.Role, ttl time.Duration) string {
	t.Helper()
	token, err := IssueToken(&entity.User{ID: id, Email: id + "@example.com", UserType: role}, secret, ttl)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

func TestParseToken(t *testing.T) {
	token := mustToken(t, "d1", entity.RoleDriver, time.Hour)
	claims, err := ParseToken(token, secret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != "d1" || claims.Role != entity.RoleDriver {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ParseToken(token, "other-secret"); err == nil {
		t.Error("expected signature error")
	}
	if _, err := ParseToken(mustToken(t, "d1", entity.RoleDriver, -time.Hour), secret); err == nil {
		t.Error("expected expiry error")
	}
	if _, err := IssueToken(&entity.User{ID: "x", UserType: "guest"}, secret, time.Hour); err == nil {
		t.Error("expected error for unknown user type")
	}
}

func TestAuthenticator_Middleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		simulated  string
		stored     string
		wantStatus int
		wantActor  lifecycle.Actor
		wantReal   entity.Role
	}{
		{
			name:       "valid driver token",
			header:     "Bearer " + mustToken(t, "d1", entity.RoleDriver, time.Hour),
			wantStatus: http.StatusOK,
			wantActor:  lifecycle.Actor{UserID: "d1", Role: entity.RoleDriver},
		},
		{
			name:       "missing token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed scheme",
			header:     "Token " + mustToken(t, "d1", entity.RoleDriver, time.Hour),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			header:     "Bearer " + mustToken(t, "d1", entity.RoleDriver, -time.Minute),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "admin simulating a driver by header",
			header:     "Bearer " + mustToken(t, "a1", entity.RoleAdmin, time.Hour),
			simulated:  "entregador",
			wantStatus: http.StatusOK,
			wantActor:  lifecycle.Actor{UserID: "a1", Role: entity.RoleDriver},
			wantReal:   entity.RoleAdmin,
		},
		{
			name:       "admin simulated role from client state",
			header:     "Bearer " + mustToken(t, "a1", entity.RoleAdmin, time.Hour),
			stored:     "restaurante",
			wantStatus: http.StatusOK,
			wantActor:  lifecycle.Actor{UserID: "a1", Role: entity.RoleRestaurant},
		},
		{
			name:       "customer cannot simulate",
			header:     "Bearer " + mustToken(t, "c1", entity.RoleCustomer, time.Hour),
			simulated:  "admin",
			wantStatus: http.StatusOK,
			wantActor:  lifecycle.Actor{UserID: "c1", Role: entity.RoleCustomer},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := NewAuthenticator(Params{
				Config: config.Config{Auth: config.Auth{JWTSecret: secret}},
				Overrides: &mockOverrides{GetStringFunc: func(ctx context.Context, sessionID string, key clientstate.Key) (string, error) {
					if key != clientstate.KeySimulatedRole {
						t.Errorf("unexpected key %s", key)
					}
					return tt.stored, nil
				}},
				Logger: zap.NewNop(),
			})

			e := echo.New()
			var got lifecycle.Actor
			var realRole entity.Role
			e.GET("/", func(c echo.Context) error {
				actor, err := ActorFrom(c)
				if err != nil {
					return err
				}
				got = actor
				realRole = RealRole(c)
				return c.NoContent(http.StatusOK)
			}, auth.Middleware())

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			if tt.simulated != "" {
				req.Header.Set(SimulatedRoleHeader, tt.simulated)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && got != tt.wantActor {
				t.Errorf("actor = %+v, want %+v", got, tt.wantActor)
			}
			if tt.wantReal != "" && realRole != tt.wantReal {
				t.Errorf("real role = %s, want %s", realRole, tt.wantReal)
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	e := echo.New()
	handler := RequireRoles(entity.RoleDriver)(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	for _, tt := range []struct {
		role entity.Role
		want int
	}{
		{entity.RoleDriver, http.StatusNoContent},
		{entity.RoleCustomer, http.StatusForbidden},
	} {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		WithActor(c, lifecycle.Actor{UserID: "u", Role: tt.role})
		if err := handler(c); err != nil {
			t.Fatalf("handler error = %v", err)
		}
		if rec.Code != tt.want {
			t.Errorf("role %s status = %d, want %d", tt.role, rec.Code, tt.want)
		}
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = handler(c)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no actor status = %d, want 401", rec.Code)
	}
}
