// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/perkbot/internal/model"
)

// CatalogRepository はパークカタログの永続化インターフェース。
type CatalogRepository interface {
	// ReplaceCatalog はカタログ全体を指定されたパーク一覧に置き換える。
	// 単一トランザクションで実行し、失敗時は以前のカタログが残る。
	// 同名の入力は後勝ちで1件にまとめる。名前が残るパークのIDは維持する。
	ReplaceCatalog(ctx context.Context, perks []model.PerkInput) error

	// ListPerkNames は取り込み順にパーク名一覧を返す。
	ListPerkNames(ctx context.Context) ([]string, error)

	// ListPerks は取り込み順にパーク一覧を返す。
	ListPerks(ctx context.Context) ([]model.Perk, error)

	// FindPerkByID は指定IDのパークを取得する。見つからない場合はnilを返す。
	FindPerkByID(ctx context.Context, id int64) (*model.Perk, error)

	// ListDistinctTypes はカタログに存在するタイプを重複なしで返す。
	ListDistinctTypes(ctx context.Context) ([]string, error)

	// ListDistinctSpecializations はカタログに存在する専門を重複なしで返す。
	ListDistinctSpecializations(ctx context.Context) ([]string, error)
}

// AssignmentRepository はユーザーとパークの紐付けの永続化インターフェース。
// カタログから消えたパークを参照する行は読み取り時に除外される。
type AssignmentRepository interface {
	// GetUserPerks はユーザーが保持するパーク名を返す。
	GetUserPerks(ctx context.Context, userID string) ([]string, error)

	// UserHasAssignments はユーザーが1件以上の紐付けを持つかを返す。
	UserHasAssignments(ctx context.Context, userID string) (bool, error)

	// ReplaceUserPerks はユーザーの紐付けを全削除してから指定されたパーク名で作り直す。
	// カタログに存在しない名前は黙って読み飛ばす。同一入力に対して冪等。
	ReplaceUserPerks(ctx context.Context, userID, userName string, perkNames []string) error

	// ClearUserPerks はユーザーの紐付けを全削除する。紐付けがなくてもエラーにしない。
	ClearUserPerks(ctx context.Context, userID string) error

	// QueryByPerkNameSubstring はパーク名の部分一致（大文字小文字を区別しない）で
	// パークごとの保持ユーザーを返す。
	QueryByPerkNameSubstring(ctx context.Context, fragment string) ([]model.PerkHolders, error)

	// QueryByType は指定タイプのパークを保持するユーザーごとのパーク名を返す。
	QueryByType(ctx context.Context, perkType string) (model.UserPerks, error)

	// QueryBySpecialization は指定専門のパークを保持するユーザーごとのパーク名を返す。
	QueryBySpecialization(ctx context.Context, specialization string) (model.UserPerks, error)

	// QueryAll は全ユーザーの保持パーク名を返す。
	QueryAll(ctx context.Context) (model.UserPerks, error)
}
