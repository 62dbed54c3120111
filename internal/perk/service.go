// Package perk はパーク選択・検索・クリアのアプリケーションロジックを提供する。
// チャット側のイベントを受けてセッションを操作し、結果を表示用のデータとして返す。
package perk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/perkbot/internal/model"
	"github.com/hitoshi/perkbot/internal/repository"
	"github.com/hitoshi/perkbot/internal/selection"
)

// セッション種別（メトリクスラベル）
const (
	KindSelection = "selection"
	KindSearch    = "search"
)

// SessionRecorder はセッションメトリクスの記録先。
type SessionRecorder interface {
	RecordSessionOpened(kind string)
	RecordSessionClosed(kind, outcome string)
	RecordSubmitRejected(reason string)
}

// Options はサービスの設定。
type Options struct {
	MaxPerks         int
	PageSize         int
	SelectionTimeout time.Duration
	SearchTimeout    time.Duration
	PromptGrace      time.Duration
}

// SelectionPrompt は選択セッションの表示内容。
type SelectionPrompt struct {
	Prompt  string         `json:"prompt,omitempty"`
	Session selection.View `json:"session"`
	Notice  *model.Notice  `json:"notice,omitempty"`
}

// SearchPrompt は検索セッションの表示内容。
type SearchPrompt struct {
	Prompt  string               `json:"prompt"`
	Session selection.SearchView `json:"session"`
}

// QueryResult は検索結果。該当なしの場合はNoticeのみを持つ。
type QueryResult struct {
	Title  string              `json:"title,omitempty"`
	Users  model.UserPerks     `json:"users,omitempty"`
	Perks  []model.PerkHolders `json:"perks,omitempty"`
	Notice *model.Notice       `json:"notice,omitempty"`
}

// Service はパーク操作のサービス層。
type Service struct {
	catalog     repository.CatalogRepository
	assignments repository.AssignmentRepository
	metrics     SessionRecorder
	logger      *slog.Logger
	opts        Options

	selections *selection.Registry[*selection.Session]
	searches   *selection.Registry[*selection.SearchSession]

	now   func() time.Time
	newID func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	catalog repository.CatalogRepository,
	assignments repository.AssignmentRepository,
	metrics SessionRecorder,
	logger *slog.Logger,
	opts Options,
) *Service {
	s := &Service{
		catalog:     catalog,
		assignments: assignments,
		metrics:     metrics,
		logger:      logger,
		opts:        opts,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	s.selections = selection.NewRegistry(opts.PromptGrace, func(sess *selection.Session) {
		s.logger.Info("選択セッションがタイムアウトしました",
			slog.String("session_id", sess.ID()),
			slog.String("actor_id", sess.OwnerID()),
		)
		s.metrics.RecordSessionClosed(KindSelection, selection.StateTimedOut.String())
	})
	s.searches = selection.NewRegistry(opts.PromptGrace, func(sess *selection.SearchSession) {
		s.metrics.RecordSessionClosed(KindSearch, selection.StateTimedOut.String())
	})
	return s
}

// RunSweeper はコンテキストがキャンセルされるまでセッションの期限切れ処理を定期実行する。
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	go s.searches.Run(ctx, interval, s.now, s.logger)
	s.selections.Run(ctx, interval, s.now, s.logger)
}

// OpenSelection は選択セッションを開始する。
// ユーザーが現在保持しているパークは選択済みとして表示される。
func (s *Service) OpenSelection(ctx context.Context, actorID, actorName string) (*SelectionPrompt, error) {
	names, err := s.catalog.ListPerkNames(ctx)
	if err != nil {
		s.logger.Error("パーク一覧の取得に失敗しました",
			slog.String("actor_id", actorID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageFaultError("fetching perks")
	}
	if len(names) == 0 {
		return nil, model.NewNoPerksAvailableError()
	}

	existing, err := s.assignments.GetUserPerks(ctx, actorID)
	if err != nil {
		s.logger.Error("保持パークの取得に失敗しました",
			slog.String("actor_id", actorID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageFaultError("fetching perks")
	}

	sess := selection.NewSession(selection.Config{
		ID:        s.newID(),
		OwnerID:   actorID,
		OwnerName: actorName,
		Catalog:   names,
		Existing:  existing,
		PageSize:  s.opts.PageSize,
		MaxPerks:  s.opts.MaxPerks,
		Now:       s.now(),
		TTL:       s.opts.SelectionTimeout,
	})
	s.selections.Add(sess)
	s.metrics.RecordSessionOpened(KindSelection)

	s.logger.Info("選択セッションを開始しました",
		slog.String("session_id", sess.ID()),
		slog.String("actor_id", actorID),
		slog.Int("perks_count", len(names)),
		slog.Int("existing_count", len(existing)),
	)

	return &SelectionPrompt{
		Prompt:  fmt.Sprintf("%s - Select your perks and then click Submit:", actorName),
		Session: sess.View(),
	}, nil
}

// SelectPage はページの選択変更を反映する。
func (s *Service) SelectPage(ctx context.Context, sessionID, actorID string, page int, values []string) (*SelectionPrompt, error) {
	sess, err := s.selection(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Select(actorID, page, values, s.now()); err != nil {
		return nil, s.sessionError(err)
	}
	return &SelectionPrompt{
		Session: sess.View(),
		Notice:  model.NewNotice("Perks selected, click Submit when done.", model.NoticeShort),
	}, nil
}

// Submit は選択内容を検証して保存する。
// 保存に失敗した場合はセッションをOpenに戻し、ユーザーが再送信できるようにする。
func (s *Service) Submit(ctx context.Context, sessionID, actorID string) (*SelectionPrompt, error) {
	sess, err := s.selection(sessionID)
	if err != nil {
		return nil, err
	}

	perks, err := sess.BeginSubmit(actorID, s.now())
	if err != nil {
		switch {
		case errors.Is(err, selection.ErrNothingSelected):
			s.metrics.RecordSubmitRejected("empty")
		case errors.Is(err, selection.ErrTooManySelected):
			s.metrics.RecordSubmitRejected("too_many")
		}
		return nil, s.sessionError(err)
	}

	hadPerks, err := s.assignments.UserHasAssignments(ctx, actorID)
	if err != nil {
		sess.Abort()
		s.logger.Error("保持パークの確認に失敗しました",
			slog.String("session_id", sessionID),
			slog.String("actor_id", actorID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageFaultError("saving your perks")
	}

	if err := s.assignments.ReplaceUserPerks(ctx, actorID, sess.OwnerName(), perks); err != nil {
		sess.Abort()
		s.logger.Error("パークの保存に失敗しました",
			slog.String("session_id", sessionID),
			slog.String("actor_id", actorID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageFaultError("saving your perks")
	}

	sess.Commit(s.now())
	s.metrics.RecordSessionClosed(KindSelection, selection.StateCommitted.String())
	s.logger.Info("パークを保存しました",
		slog.String("session_id", sessionID),
		slog.String("actor_id", actorID),
		slog.Int("perks_count", len(perks)),
		slog.Bool("updated", hadPerks),
	)

	message := "Your perks have been saved!"
	if hadPerks {
		message = "Your perks have been updated!"
	}
	return &SelectionPrompt{
		Session: sess.View(),
		Notice:  model.NewNotice(message, model.NoticeDefault),
	}, nil
}

// Cancel は選択セッションを破棄する。保存済みのパークは変更しない。
func (s *Service) Cancel(ctx context.Context, sessionID, actorID string) (*SelectionPrompt, error) {
	sess, err := s.selection(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Cancel(actorID, s.now()); err != nil {
		return nil, s.sessionError(err)
	}
	s.metrics.RecordSessionClosed(KindSelection, selection.StateCancelled.String())

	return &SelectionPrompt{
		Session: sess.View(),
		Notice:  model.NewNotice("Perk selection cancelled.", model.NoticeDefault),
	}, nil
}

// OpenSearch は検索セッションを開始する。選択肢のタイプと専門はこの時点のカタログから作る。
func (s *Service) OpenSearch(ctx context.Context, actorID string) (*SearchPrompt, error) {
	types, err := s.catalog.ListDistinctTypes(ctx)
	if err != nil {
		return nil, s.storageFault("setting up the search", actorID, err)
	}
	specs, err := s.catalog.ListDistinctSpecializations(ctx)
	if err != nil {
		return nil, s.storageFault("setting up the search", actorID, err)
	}

	sess := selection.NewSearchSession(s.newID(), actorID, types, specs, s.now(), s.opts.SearchTimeout)
	s.searches.Add(sess)
	s.metrics.RecordSessionOpened(KindSearch)

	return &SearchPrompt{
		Prompt:  "Select a search method and enter the required information:",
		Session: sess.View(),
	}, nil
}

// SearchByType は指定タイプのパークを保持するユーザーを返す。
func (s *Service) SearchByType(ctx context.Context, sessionID, actorID, perkType string) (*QueryResult, error) {
	sess, err := s.authorizeSearch(sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if !sess.HasType(perkType) {
		return nil, model.NewUnknownOptionError(perkType)
	}

	users, err := s.assignments.QueryByType(ctx, perkType)
	if err != nil {
		return nil, s.storageFault("searching for users", actorID, err)
	}
	if len(users) == 0 {
		return emptyResult(fmt.Sprintf("No users found with perks of type '%s'.", perkType)), nil
	}
	return &QueryResult{Title: fmt.Sprintf("Users with perks of type '%s'", perkType), Users: users}, nil
}

// SearchBySpecialization は指定専門のパークを保持するユーザーを返す。
func (s *Service) SearchBySpecialization(ctx context.Context, sessionID, actorID, specialization string) (*QueryResult, error) {
	sess, err := s.authorizeSearch(sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if !sess.HasSpecialization(specialization) {
		return nil, model.NewUnknownOptionError(specialization)
	}

	users, err := s.assignments.QueryBySpecialization(ctx, specialization)
	if err != nil {
		return nil, s.storageFault("searching for users", actorID, err)
	}
	if len(users) == 0 {
		return emptyResult(fmt.Sprintf("No users found with perks of specialization '%s'.", specialization)), nil
	}
	return &QueryResult{Title: fmt.Sprintf("Users with perks of specialization '%s'", specialization), Users: users}, nil
}

// SearchByName はパーク名の部分一致でパークごとの保持ユーザーを返す。
func (s *Service) SearchByName(ctx context.Context, sessionID, actorID, fragment string) (*QueryResult, error) {
	if _, err := s.authorizeSearch(sessionID, actorID); err != nil {
		return nil, err
	}
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, model.NewInvalidRequestError("perk name is required")
	}

	perks, err := s.assignments.QueryByPerkNameSubstring(ctx, fragment)
	if err != nil {
		return nil, s.storageFault("searching for perks", actorID, err)
	}
	if len(perks) == 0 {
		return emptyResult(fmt.Sprintf("No users found with perk matching '%s'.", fragment)), nil
	}
	return &QueryResult{Title: fmt.Sprintf("Users with perks '%s'", fragment), Perks: perks}, nil
}

// SearchAll は全ユーザーの保持パークを返す。
func (s *Service) SearchAll(ctx context.Context, sessionID, actorID string) (*QueryResult, error) {
	if _, err := s.authorizeSearch(sessionID, actorID); err != nil {
		return nil, err
	}

	users, err := s.assignments.QueryAll(ctx)
	if err != nil {
		return nil, s.storageFault("fetching all users with perks", actorID, err)
	}
	if len(users) == 0 {
		return emptyResult("No users found with perks."), nil
	}
	return &QueryResult{Title: "All users with their perks", Users: users}, nil
}

// ClearPerks はユーザーの保持パークをすべて削除する。保持パークがなくてもエラーにしない。
func (s *Service) ClearPerks(ctx context.Context, actorID string) (*model.Notice, error) {
	had, err := s.assignments.UserHasAssignments(ctx, actorID)
	if err != nil {
		return nil, s.storageFault("clearing your perks", actorID, err)
	}
	if !had {
		return model.NewNotice("You have no perks to clear.", model.NoticeDefault), nil
	}

	if err := s.assignments.ClearUserPerks(ctx, actorID); err != nil {
		return nil, s.storageFault("clearing your perks", actorID, err)
	}
	s.logger.Info("パークをクリアしました", slog.String("actor_id", actorID))
	return model.NewNotice("Your perks have been cleared!", model.NoticeDefault), nil
}

// PerkInfo はパークの詳細を返す。
func (s *Service) PerkInfo(ctx context.Context, perkID int64) (*model.Perk, error) {
	perk, err := s.catalog.FindPerkByID(ctx, perkID)
	if err != nil {
		s.logger.Error("パーク情報の取得に失敗しました",
			slog.Int64("perk_id", perkID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageFaultError("fetching perk information")
	}
	if perk == nil {
		return nil, model.NewPerkNotFoundError()
	}
	return perk, nil
}

// ListPerks はカタログのパーク一覧を取り込み順で返す。
func (s *Service) ListPerks(ctx context.Context) ([]model.Perk, error) {
	perks, err := s.catalog.ListPerks(ctx)
	if err != nil {
		s.logger.Error("パーク一覧の取得に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewStorageFaultError("fetching perks")
	}
	return perks, nil
}

func (s *Service) selection(sessionID string) (*selection.Session, error) {
	sess, ok := s.selections.Get(sessionID)
	if !ok {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return sess, nil
}

func (s *Service) authorizeSearch(sessionID, actorID string) (*selection.SearchSession, error) {
	sess, ok := s.searches.Get(sessionID)
	if !ok {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	if err := sess.Authorize(actorID, s.now()); err != nil {
		return nil, s.sessionError(err)
	}
	return sess, nil
}

// sessionError はセッション層のエラーを利用者向けのAPIErrorに変換する。
func (s *Service) sessionError(err error) error {
	var optErr *selection.OptionError
	switch {
	case errors.Is(err, selection.ErrNotAuthorized):
		return model.NewNotAuthorizedError()
	case errors.Is(err, selection.ErrExpired):
		return model.NewSessionExpiredError()
	case errors.Is(err, selection.ErrClosed):
		return model.NewSessionClosedError()
	case errors.Is(err, selection.ErrInvalidPage):
		return model.NewInvalidRequestError("page out of range")
	case errors.As(err, &optErr):
		return model.NewUnknownOptionError(optErr.Value)
	case errors.Is(err, selection.ErrNothingSelected):
		return model.NewNoPerksSelectedError()
	case errors.Is(err, selection.ErrTooManySelected):
		return model.NewTooManyPerksError(s.opts.MaxPerks)
	default:
		return err
	}
}

func (s *Service) storageFault(operation, actorID string, err error) error {
	s.logger.Error("ストレージ操作に失敗しました",
		slog.String("operation", operation),
		slog.String("actor_id", actorID),
		slog.String("error", err.Error()),
	)
	return model.NewStorageFaultError(operation)
}

func emptyResult(message string) *QueryResult {
	return &QueryResult{Notice: model.NewNotice(message, model.NoticeDefault)}
}
