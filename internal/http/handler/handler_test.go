package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkguard/internal/app/model"
	"github.com/sifan077/linkguard/internal/app/repository"
	"github.com/sifan077/linkguard/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLinkService struct {
	createFn     func(ctx context.Context, in service.CreateLinkInput) (*service.CreateLinkResult, error)
	infoFn       func(ctx context.Context, code string, limit, offset int) (*service.LinkInfo, error)
	statsFn      func(ctx context.Context, code string, rng service.DayRange) (*service.LinkStats, error)
	listFn       func(ctx context.Context, owner string, limit, offset int) ([]model.Link, error)
	deactivateFn func(ctx context.Context, code, ip string) (*model.Link, error)
	overviewFn   func(ctx context.Context) (model.Overview, error)
	listAllFn    func(ctx context.Context, limit, offset int) ([]model.Link, error)
	boardFn      func(ctx context.Context) (model.ClickLeaderboard, error)
}

func (s *stubLinkService) CreateLink(ctx context.Context, in service.CreateLinkInput) (*service.CreateLinkResult, error) {
	return s.createFn(ctx, in)
}

func (s *stubLinkService) GetLink(ctx context.Context, code string) (*model.Link, error) {
	info, err := s.GetLinkInfo(ctx, code, 0, 0)
	if err != nil {
		return nil, err
	}
	return info.Link, nil
}

func (s *stubLinkService) GetLinkInfo(ctx context.Context, code string, limit, offset int) (*service.LinkInfo, error) {
	return s.infoFn(ctx, code, limit, offset)
}

func (s *stubLinkService) GetStats(ctx context.Context, code string, rng service.DayRange) (*service.LinkStats, error) {
	return s.statsFn(ctx, code, rng)
}

func (s *stubLinkService) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]model.Link, error) {
	return s.listFn(ctx, owner, limit, offset)
}

func (s *stubLinkService) Deactivate(ctx context.Context, code, ip string) (*model.Link, error) {
	return s.deactivateFn(ctx, code, ip)
}

func (s *stubLinkService) Overview(ctx context.Context) (model.Overview, error) {
	return s.overviewFn(ctx)
}

func (s *stubLinkService) ListAll(ctx context.Context, limit, offset int) ([]model.Link, error) {
	return s.listAllFn(ctx, limit, offset)
}

func (s *stubLinkService) Leaderboard(ctx context.Context) (model.ClickLeaderboard, error) {
	return s.boardFn(ctx)
}

func newAPIApp(svc service.LinkService) *fiber.App {
	app := fiber.New()
	NewAPIHandler(APIDeps{LinkService: svc, BaseURL: "https://sho.rt/"}).Register(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	req.Header.Set(fiber.HeaderUserAgent, "handler-test")

	resp, err := app.Test(req)
	require.NoError(t, err)

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestAPIHandler_CreateLink(t *testing.T) {
	var got service.CreateLinkInput
	svc := &stubLinkService{
		createFn: func(ctx context.Context, in service.CreateLinkInput) (*service.CreateLinkResult, error) {
			got = in
			return &service.CreateLinkResult{Link: &model.Link{Code: "abc123", URL: in.URL}}, nil
		},
	}

	resp, body := doJSON(t, newAPIApp(svc), http.MethodPost, "/api/links", `{"url":"https://example.com","custom_code":"abc123"}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "abc123", body["code"])
	assert.Equal(t, "https://sho.rt/abc123", body["short_url"])
	assert.Equal(t, true, body["accepted"])
	assert.Equal(t, false, body["existing"])

	assert.Equal(t, "https://example.com", got.URL)
	assert.Equal(t, "abc123", got.CustomCode)
	assert.Equal(t, "0.0.0.0", got.ClientIP)
	assert.Equal(t, "handler-test", got.UserAgent)
}

func TestAPIHandler_CreateLink_Existing(t *testing.T) {
	svc := &stubLinkService{
		createFn: func(ctx context.Context, in service.CreateLinkInput) (*service.CreateLinkResult, error) {
			return &service.CreateLinkResult{Link: &model.Link{Code: "old", URL: in.URL}, Existing: true}, nil
		},
	}

	resp, body := doJSON(t, newAPIApp(svc), http.MethodPost, "/api/links", `{"url":"https://example.com"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["existing"])
}

func TestAPIHandler_CreateLink_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{
			name:   "validation",
			err:    &service.ValidationError{Fields: []service.FieldError{{Field: "url", Message: "url is required"}}},
			status: fiber.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				fields, ok := body["fields"].([]any)
				require.True(t, ok)
				assert.Len(t, fields, 1)
			},
		},
		{
			name:   "spam",
			err:    &service.SpamRejectedError{Reason: model.AbuseBlockedDomain},
			status: fiber.StatusTooManyRequests,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "BLOCKED_DOMAIN", body["reason"])
				assert.NotContains(t, fmt.Sprint(body), "Domain:")
			},
		},
		{name: "blocked", err: service.ErrIPBlocked, status: fiber.StatusForbidden},
		{name: "conflict", err: service.ErrConflict, status: fiber.StatusConflict},
		{
			name:   "store",
			err:    fmt.Errorf("create link: %w: %w", service.ErrStoreUnavailable, repository.ErrLinkNotFound),
			status: fiber.StatusInternalServerError,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "internal server error", body["error"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubLinkService{
				createFn: func(ctx context.Context, in service.CreateLinkInput) (*service.CreateLinkResult, error) {
					return nil, tt.err
				},
			}
			resp, body := doJSON(t, newAPIApp(svc), http.MethodPost, "/api/links", `{"url":"https://example.com"}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestAPIHandler_CreateLink_BadBody(t *testing.T) {
	resp, _ := doJSON(t, newAPIApp(&stubLinkService{}), http.MethodPost, "/api/links", `{"url":`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandler_ListLinks(t *testing.T) {
	var owner string
	var limit, offset int
	svc := &stubLinkService{
		listFn: func(ctx context.Context, o string, l, off int) ([]model.Link, error) {
			owner, limit, offset = o, l, off
			return []model.Link{{Code: "a", Active: true}, {Code: "b"}}, nil
		},
	}
	app := newAPIApp(svc)

	resp, body := doJSON(t, app, http.MethodGet, "/api/links?owner=1.2.3.4&limit=5&offset=10", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.2.3.4", owner)
	assert.Equal(t, 5, limit)
	assert.Equal(t, 10, offset)
	assert.EqualValues(t, 2, body["count"])

	_, _ = doJSON(t, app, http.MethodGet, "/api/links?limit=1000", "")
	assert.Equal(t, "0.0.0.0", owner, "defaults to the caller")
	assert.Equal(t, defaultPageLimit, limit)
}

func TestAPIHandler_GetLink(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := &stubLinkService{
		infoFn: func(ctx context.Context, code string, limit, offset int) (*service.LinkInfo, error) {
			if code != "abc" {
				return nil, service.ErrNotFound
			}
			return &service.LinkInfo{
				Link:    &model.Link{Code: "abc", URL: "https://example.com", Clicks: 3, Active: true},
				History: []model.ClickDay{{Date: now, Count: 3}},
			}, nil
		},
	}
	app := newAPIApp(svc)

	resp, body := doJSON(t, app, http.MethodGet, "/api/links/abc", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	link := body["link"].(map[string]any)
	assert.EqualValues(t, 3, link["clicks"])
	assert.Len(t, body["history"], 1)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/links/zzz", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/links/x.y", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAPIHandler_GetStats(t *testing.T) {
	var got service.DayRange
	svc := &stubLinkService{
		statsFn: func(ctx context.Context, code string, rng service.DayRange) (*service.LinkStats, error) {
			got = rng
			return &service.LinkStats{Code: code, Range: rng, Clicks: 4, TotalClicks: 9}, nil
		},
	}
	app := newAPIApp(svc)

	resp, body := doJSON(t, app, http.MethodGet, "/api/links/abc/stats?date=2026-03-01", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 4, body["clicks"])
	assert.EqualValues(t, 9, body["total_clicks"])
	assert.Equal(t, got.From, got.To)

	resp, body = doJSON(t, app, http.MethodGet, "/api/links/abc/stats?start_date=2026-03-05&end_date=2026-03-01", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "2026-03-01", body["start_date"])
	assert.Equal(t, "2026-03-05", body["end_date"])

	resp, _ = doJSON(t, app, http.MethodGet, "/api/links/abc/stats?date=03/01/2026", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/links/abc/stats?start_date=2026-03-01", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandler_Deactivate(t *testing.T) {
	svc := &stubLinkService{
		deactivateFn: func(ctx context.Context, code, ip string) (*model.Link, error) {
			if code == "theirs" {
				return nil, service.ErrForbidden
			}
			return &model.Link{Code: code, Active: false}, nil
		},
	}
	app := newAPIApp(svc)

	resp, body := doJSON(t, app, http.MethodPatch, "/api/links/mine/deactivate", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["active"])

	resp, _ = doJSON(t, app, http.MethodPatch, "/api/links/theirs/deactivate", "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAPIHandler_Overview(t *testing.T) {
	svc := &stubLinkService{
		overviewFn: func(ctx context.Context) (model.Overview, error) {
			return model.Overview{TotalLinks: 10, ActiveLinks: 8, TotalClicks: 42, ActiveBlocks: 1}, nil
		},
	}

	resp, body := doJSON(t, newAPIApp(svc), http.MethodGet, "/api/stats/overview", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 10, body["total_links"])
	assert.EqualValues(t, 42, body["total_clicks"])
}

func TestAPIHandler_ListAllLinks(t *testing.T) {
	var gotLimit, gotOffset int
	svc := &stubLinkService{
		listAllFn: func(ctx context.Context, limit, offset int) ([]model.Link, error) {
			gotLimit, gotOffset = limit, offset
			return []model.Link{
				{Code: "b", URL: "https://example.com/b", OwnerIP: "2.2.2.2", Active: true},
				{Code: "a", URL: "https://example.com/a", OwnerIP: "1.1.1.1", Active: true},
			}, nil
		},
	}

	resp, body := doJSON(t, newAPIApp(svc), http.MethodGet, "/api/stats/links?limit=2&offset=4", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, gotLimit)
	assert.Equal(t, 4, gotOffset)
	assert.EqualValues(t, 2, body["count"])
	links := body["links"].([]any)
	assert.Equal(t, "https://sho.rt/b", links[0].(map[string]any)["short_url"])
}

func TestAPIHandler_Leaderboard(t *testing.T) {
	clicked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubLinkService{
		boardFn: func(ctx context.Context) (model.ClickLeaderboard, error) {
			busy := model.Link{Code: "busy", URL: "https://example.com", Clicks: 9, LastClickedAt: &clicked, Active: true}
			return model.ClickLeaderboard{
				Summary:         model.ClickSummary{TotalClicks: 9, TotalLinks: 2, ClickedLinks: 1, UnclickedLinks: 1, AvgClicks: 4.5},
				TopLinks:        []model.Link{busy},
				RecentlyClicked: []model.Link{busy},
			}, nil
		},
	}

	resp, body := doJSON(t, newAPIApp(svc), http.MethodGet, "/api/stats/clicks", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 9, summary["total_clicks"])
	assert.EqualValues(t, 1, summary["unclicked_links"])
	assert.Equal(t, 4.5, summary["avg_clicks"])
	top := body["top_links"].([]any)
	require.Len(t, top, 1)
	assert.Equal(t, "busy", top[0].(map[string]any)["code"])
	assert.Len(t, body["recently_clicked"], 1)

	svc.boardFn = func(ctx context.Context) (model.ClickLeaderboard, error) {
		return model.ClickLeaderboard{}, service.ErrStoreUnavailable
	}
	resp, body = doJSON(t, newAPIApp(svc), http.MethodGet, "/api/stats/clicks", "")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", body["error"])
}

type stubClickLinks struct {
	links map[string]*model.Link
	err   error
}

func (s *stubClickLinks) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	if s.err != nil {
		return nil, s.err
	}
	link, ok := s.links[code]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *stubClickLinks) IncrementClicks(ctx context.Context, code string, at time.Time) error {
	s.links[code].Clicks++
	return nil
}

func newRedirectApp(links *stubClickLinks) *fiber.App {
	recorder := service.NewClickRecorder(links, nil, nil, service.ClickRecorderOptions{}, nil, nil)
	app := fiber.New()
	NewRedirectHandler(RedirectDeps{Recorder: recorder}).Register(app)
	return app
}

func TestRedirectHandler_Resolve(t *testing.T) {
	links := &stubClickLinks{links: map[string]*model.Link{
		"abc": {Code: "abc", URL: "https://example.com/landing", Active: true},
		"off": {Code: "off", URL: "https://example.com/off", Active: false},
	}}
	app := newRedirectApp(links)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com/landing", resp.Header.Get(fiber.HeaderLocation))
	assert.EqualValues(t, 1, links.links["abc"].Clicks)

	for _, path := range []string{"/off", "/missing", "/favicon.ico"} {
		resp, err = app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, path)
	}
}

func TestRedirectHandler_StoreDown(t *testing.T) {
	app := newRedirectApp(&stubClickLinks{err: fmt.Errorf("dial tcp: connection refused")})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestRedirectHandler_Health(t *testing.T) {
	app := newRedirectApp(&stubClickLinks{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
