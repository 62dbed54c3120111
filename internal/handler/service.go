package handler

import (
	"context"

	"github.com/hitoshi/perkbot/internal/model"
	"github.com/hitoshi/perkbot/internal/perk"
)

// PerkServiceInterface はハンドラーが必要とするパーク操作のインターフェース。
// perk.Serviceが実装する。
type PerkServiceInterface interface {
	OpenSelection(ctx context.Context, actorID, actorName string) (*perk.SelectionPrompt, error)
	SelectPage(ctx context.Context, sessionID, actorID string, page int, values []string) (*perk.SelectionPrompt, error)
	Submit(ctx context.Context, sessionID, actorID string) (*perk.SelectionPrompt, error)
	Cancel(ctx context.Context, sessionID, actorID string) (*perk.SelectionPrompt, error)

	OpenSearch(ctx context.Context, actorID string) (*perk.SearchPrompt, error)
	SearchByType(ctx context.Context, sessionID, actorID, perkType string) (*perk.QueryResult, error)
	SearchBySpecialization(ctx context.Context, sessionID, actorID, specialization string) (*perk.QueryResult, error)
	SearchByName(ctx context.Context, sessionID, actorID, fragment string) (*perk.QueryResult, error)
	SearchAll(ctx context.Context, sessionID, actorID string) (*perk.QueryResult, error)

	ClearPerks(ctx context.Context, actorID string) (*model.Notice, error)
	PerkInfo(ctx context.Context, perkID int64) (*model.Perk, error)
	ListPerks(ctx context.Context) ([]model.Perk, error)
}

// compile-time interface check
var _ PerkServiceInterface = (*perk.Service)(nil)
