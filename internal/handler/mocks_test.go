package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/perkbot/internal/middleware"
	"github.com/hitoshi/perkbot/internal/model"
	"github.com/hitoshi/perkbot/internal/perk"
	"github.com/hitoshi/perkbot/internal/worker/ingest"
)

// --- モック定義 ---

// mockPerkService はPerkServiceInterfaceのモック実装。
type mockPerkService struct {
	openSelectionFn func(ctx context.Context, actorID, actorName string) (*perk.SelectionPrompt, error)
	selectPageFn    func(ctx context.Context, sessionID, actorID string, page int, values []string) (*perk.SelectionPrompt, error)
	submitFn        func(ctx context.Context, sessionID, actorID string) (*perk.SelectionPrompt, error)
	cancelFn        func(ctx context.Context, sessionID, actorID string) (*perk.SelectionPrompt, error)

	openSearchFn             func(ctx context.Context, actorID string) (*perk.SearchPrompt, error)
	searchByTypeFn           func(ctx context.Context, sessionID, actorID, perkType string) (*perk.QueryResult, error)
	searchBySpecializationFn func(ctx context.Context, sessionID, actorID, specialization string) (*perk.QueryResult, error)
	searchByNameFn           func(ctx context.Context, sessionID, actorID, fragment string) (*perk.QueryResult, error)
	searchAllFn              func(ctx context.Context, sessionID, actorID string) (*perk.QueryResult, error)

	clearPerksFn func(ctx context.Context, actorID string) (*model.Notice, error)
	perkInfoFn   func(ctx context.Context, perkID int64) (*model.Perk, error)
	listPerksFn  func(ctx context.Context) ([]model.Perk, error)
}

func (m *mockPerkService) OpenSelection(ctx context.Context, actorID, actorName string) (*perk.SelectionPrompt, error) {
	if m.openSelectionFn != nil {
		return m.openSelectionFn(ctx, actorID, actorName)
	}
	return &perk.SelectionPrompt{}, nil
}

func (m *mockPerkService) SelectPage(ctx context.Context, sessionID, actorID string, page int, values []string) (*perk.SelectionPrompt, error) {
	if m.selectPageFn != nil {
		return m.selectPageFn(ctx, sessionID, actorID, page, values)
	}
	return &perk.SelectionPrompt{}, nil
}

func (m *mockPerkService) Submit(ctx context.Context, sessionID, actorID string) (*perk.SelectionPrompt, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, sessionID, actorID)
	}
	return &perk.SelectionPrompt{}, nil
}

func (m *mockPerkService) Cancel(ctx context.Context, sessionID, actorID string) (*perk.SelectionPrompt, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, sessionID, actorID)
	}
	return &perk.SelectionPrompt{}, nil
}

func (m *mockPerkService) OpenSearch(ctx context.Context, actorID string) (*perk.SearchPrompt, error) {
	if m.openSearchFn != nil {
		return m.openSearchFn(ctx, actorID)
	}
	return &perk.SearchPrompt{}, nil
}

func (m *mockPerkService) SearchByType(ctx context.Context, sessionID, actorID, perkType string) (*perk.QueryResult, error) {
	if m.searchByTypeFn != nil {
		return m.searchByTypeFn(ctx, sessionID, actorID, perkType)
	}
	return &perk.QueryResult{}, nil
}

func (m *mockPerkService) SearchBySpecialization(ctx context.Context, sessionID, actorID, specialization string) (*perk.QueryResult, error) {
	if m.searchBySpecializationFn != nil {
		return m.searchBySpecializationFn(ctx, sessionID, actorID, specialization)
	}
	return &perk.QueryResult{}, nil
}

func (m *mockPerkService) SearchByName(ctx context.Context, sessionID, actorID, fragment string) (*perk.QueryResult, error) {
	if m.searchByNameFn != nil {
		return m.searchByNameFn(ctx, sessionID, actorID, fragment)
	}
	return &perk.QueryResult{}, nil
}

func (m *mockPerkService) SearchAll(ctx context.Context, sessionID, actorID string) (*perk.QueryResult, error) {
	if m.searchAllFn != nil {
		return m.searchAllFn(ctx, sessionID, actorID)
	}
	return &perk.QueryResult{}, nil
}

func (m *mockPerkService) ClearPerks(ctx context.Context, actorID string) (*model.Notice, error) {
	if m.clearPerksFn != nil {
		return m.clearPerksFn(ctx, actorID)
	}
	return model.NewNotice("Your perks have been cleared!", model.NoticeDefault), nil
}

func (m *mockPerkService) PerkInfo(ctx context.Context, perkID int64) (*model.Perk, error) {
	if m.perkInfoFn != nil {
		return m.perkInfoFn(ctx, perkID)
	}
	return nil, model.NewPerkNotFoundError()
}

func (m *mockPerkService) ListPerks(ctx context.Context) ([]model.Perk, error) {
	if m.listPerksFn != nil {
		return m.listPerksFn(ctx)
	}
	return nil, nil
}

// mockRefresher はCatalogRefresherのモック実装。
type mockRefresher struct {
	updatePerksFn         func(ctx context.Context) (*ingest.Result, error)
	updatePerksFromURLFn  func(ctx context.Context, url string) (*ingest.Result, error)
	updatePerksFromFileFn func(ctx context.Context, path string) (*ingest.Result, error)
}

func (m *mockRefresher) UpdatePerks(ctx context.Context) (*ingest.Result, error) {
	if m.updatePerksFn != nil {
		return m.updatePerksFn(ctx)
	}
	return &ingest.Result{}, nil
}

func (m *mockRefresher) UpdatePerksFromURL(ctx context.Context, url string) (*ingest.Result, error) {
	if m.updatePerksFromURLFn != nil {
		return m.updatePerksFromURLFn(ctx, url)
	}
	return &ingest.Result{}, nil
}

func (m *mockRefresher) UpdatePerksFromFile(ctx context.Context, path string) (*ingest.Result, error) {
	if m.updatePerksFromFileFn != nil {
		return m.updatePerksFromFileFn(ctx, path)
	}
	return &ingest.Result{}, nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

var errBoom = errors.New("boom")

// --- テストヘルパー ---

type routerOption func(*RouterDeps)

// newTestRouter はモックを組み込んだルーターを生成する。
func newTestRouter(t *testing.T, svc PerkServiceInterface, opts ...routerOption) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    100,
		RefreshRate:     100,
		RefreshBurst:    100,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		AdminToken:       "admin-secret",
		RateLimiter:      rl,
		PerkService:      svc,
		CatalogRefresher: &mockRefresher{},
	}
	for _, opt := range opts {
		opt(deps)
	}
	return NewRouter(deps)
}

// doRequest は操作者ヘッダー付きのリクエストを送る。actorIDが空の場合はヘッダーを付けない。
func doRequest(router http.Handler, method, path, actorID, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if actorID != "" {
		req.Header.Set(middleware.HeaderActorID, actorID)
		req.Header.Set(middleware.HeaderActorName, "Name of "+actorID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
