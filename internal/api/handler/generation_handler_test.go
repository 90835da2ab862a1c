package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/influencerlab/studio/internal/api/middleware"
	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

type stubGenerationService struct {
	submitFn    func(ctx context.Context, userID string, in ports.GenerateInput) (*ports.GenerateResult, error)
	getFn       func(ctx context.Context, userID, id string) (*ports.GenerationView, error)
	listFn      func(ctx context.Context, f ports.GenerationFilter) (*ports.ListGenerationsResult, error)
	dashboardFn func(ctx context.Context, userID string) (*ports.Dashboard, error)
}

func (s *stubGenerationService) Submit(ctx context.Context, userID string, in ports.GenerateInput) (*ports.GenerateResult, error) {
	return s.submitFn(ctx, userID, in)
}

func (s *stubGenerationService) Finalize(context.Context, ports.BackendOutcome) error { return nil }

func (s *stubGenerationService) Get(ctx context.Context, userID, id string) (*ports.GenerationView, error) {
	return s.getFn(ctx, userID, id)
}

func (s *stubGenerationService) List(ctx context.Context, f ports.GenerationFilter) (*ports.ListGenerationsResult, error) {
	return s.listFn(ctx, f)
}

func (s *stubGenerationService) Dashboard(ctx context.Context, userID string) (*ports.Dashboard, error) {
	return s.dashboardFn(ctx, userID)
}

func authed(c echo.Context, id string) echo.Context {
	c.Set(middleware.ContextUserID, id)
	return c
}

func TestGenerationHandler_CreateImage(t *testing.T) {
	e := newEcho()
	var got ports.GenerateInput
	h := NewGenerationHandler(&stubGenerationService{
		submitFn: func(_ context.Context, userID string, in ports.GenerateInput) (*ports.GenerateResult, error) {
			if userID != "u1" {
				t.Fatalf("unexpected user %s", userID)
			}
			got = in
			return &ports.GenerateResult{
				GenerationID:   "g1",
				Status:         domain.StatusCompleted,
				ResultURL:      "https://picsum.photos/seed/1/512/512",
				CreditsCharged: 5,
				Balance:        45,
			}, nil
		},
	})

	req := jsonRequest(http.MethodPost, "/v1/generations/image", `{"type":"video","prompt":"a cat","width":512}`)
	req.Header.Set("Idempotency-Key", "k-1")
	rec := httptest.NewRecorder()
	c := authed(e.NewContext(req, rec), "u1")

	if err := h.CreateImage(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if got.Type != "image" {
		t.Fatalf("route must force the type, got %q", got.Type)
	}
	if got.IdempotencyKey != "k-1" || got.Width == nil || *got.Width != 512 || got.Height != nil {
		t.Fatalf("unexpected input: %+v", got)
	}

	var resp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Balance != 45 || resp.CreditsCharged != 5 || resp.Links.Self != "/v1/generations/g1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGenerationHandler_Create_Replay(t *testing.T) {
	e := newEcho()
	h := NewGenerationHandler(&stubGenerationService{
		submitFn: func(context.Context, string, ports.GenerateInput) (*ports.GenerateResult, error) {
			return &ports.GenerateResult{GenerationID: "g1", Status: domain.StatusCompleted, Replayed: true}, nil
		},
	})

	rec := httptest.NewRecorder()
	c := authed(e.NewContext(jsonRequest(http.MethodPost, "/v1/generations", `{"type":"image","prompt":"x"}`), rec), "u1")

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a replay, got %d", rec.Code)
	}
}

func TestGenerationHandler_Create_Errors(t *testing.T) {
	e := newEcho()

	t.Run("unauthenticated", func(t *testing.T) {
		h := NewGenerationHandler(&stubGenerationService{})
		c := e.NewContext(jsonRequest(http.MethodPost, "/v1/generations", `{}`), httptest.NewRecorder())
		if err := h.Create(c); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("service error is passed through", func(t *testing.T) {
		h := NewGenerationHandler(&stubGenerationService{
			submitFn: func(context.Context, string, ports.GenerateInput) (*ports.GenerateResult, error) {
				return nil, domain.ErrInsufficientFunds
			},
		})
		c := authed(e.NewContext(jsonRequest(http.MethodPost, "/v1/generations", `{"type":"video"}`), httptest.NewRecorder()), "u1")
		if err := h.Create(c); !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
	})
}

func TestGenerationHandler_List(t *testing.T) {
	e := newEcho()
	var got ports.GenerationFilter
	now := time.Now()
	h := NewGenerationHandler(&stubGenerationService{
		listFn: func(_ context.Context, f ports.GenerationFilter) (*ports.ListGenerationsResult, error) {
			got = f
			return &ports.ListGenerationsResult{
				Items: []ports.GenerationView{{
					Generation: &domain.Generation{ID: "g1", Type: domain.GenerationImage, Status: domain.StatusCompleted, CreatedAt: now, UpdatedAt: now},
					Character:  &domain.Character{ID: "c1", Name: "Ava", ArtStyle: "anime"},
				}},
				Total: 21, Page: 2, Limit: 20, TotalPages: 2,
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/generations?type=image&status=completed&page=2&limit=20", nil)
	rec := httptest.NewRecorder()
	c := authed(e.NewContext(req, rec), "u1")

	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got.UserID != "u1" || got.Type != domain.GenerationImage || got.Status != domain.StatusCompleted || got.Page != 2 {
		t.Fatalf("unexpected filter: %+v", got)
	}

	var resp listGenerationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Character == nil || resp.Data[0].Character.Name != "Ava" {
		t.Fatalf("unexpected data: %+v", resp.Data)
	}
	if resp.Pagination.TotalPages != 2 {
		t.Fatalf("unexpected pagination: %+v", resp.Pagination)
	}
}

func TestGenerationHandler_List_BadPage(t *testing.T) {
	e := newEcho()
	h := NewGenerationHandler(&stubGenerationService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/generations?page=two", nil)
	c := authed(e.NewContext(req, httptest.NewRecorder()), "u1")

	if err := h.List(c); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestGenerationHandler_Get_NotFound(t *testing.T) {
	e := newEcho()
	h := NewGenerationHandler(&stubGenerationService{
		getFn: func(context.Context, string, string) (*ports.GenerationView, error) {
			return nil, domain.ErrGenerationNotFound
		},
	})

	c := authed(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()), "u1")
	c.SetParamNames("id")
	c.SetParamValues("missing")

	if err := h.Get(c); !errors.Is(err, domain.ErrGenerationNotFound) {
		t.Fatalf("expected ErrGenerationNotFound, got %v", err)
	}
}

func TestGenerationHandler_Dashboard(t *testing.T) {
	e := newEcho()
	h := NewGenerationHandler(&stubGenerationService{
		dashboardFn: func(_ context.Context, userID string) (*ports.Dashboard, error) {
			return &ports.Dashboard{Balance: 30, Tier: domain.TierFree, Characters: 2, Generations: 4}, nil
		},
	})

	rec := httptest.NewRecorder()
	c := authed(e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil), rec), "u1")

	if err := h.Dashboard(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp dashboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Balance != 30 || resp.Tier != "free" || resp.Recent == nil {
		t.Fatalf("unexpected dashboard: %+v", resp)
	}
}
