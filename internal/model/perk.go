// Package model はドメインモデルを定義する。
package model

// Perk はカタログ上のパークを表す。
// Nameはカタログ内で一意であり、IDはカタログ更新をまたいで同名のパークに対して維持される。
type Perk struct {
	ID                    int64  `json:"id"`
	Name                  string `json:"name"`
	Type                  string `json:"type"`
	Specialization        string `json:"specialization"`
	SpecializationEffects string `json:"specialization_effects"`
}

// PerkInput は取り込みパイプラインがカタログに渡す1行分のパーク定義。
// IDはストア側で割り当てる。
type PerkInput struct {
	Name                  string
	Type                  string
	Specialization        string
	SpecializationEffects string
}

// PerkHolders はパーク名の部分一致検索結果の1件。
// 同じパークを保持するユーザー表示名をまとめる。
type PerkHolders struct {
	PerkID   int64    `json:"perk_id"`
	PerkName string   `json:"perk_name"`
	Users    []string `json:"users"`
}

// UserPerks はユーザー表示名からパーク名一覧へのマッピング。
type UserPerks map[string][]string

// DedupePerkInputs は名前をキーに重複を除去する。
// 同名の行が複数ある場合は後勝ちとし、並び順は最初に出現した位置を維持する。
func DedupePerkInputs(perks []PerkInput) []PerkInput {
	index := make(map[string]int, len(perks))
	out := make([]PerkInput, 0, len(perks))
	for _, p := range perks {
		if i, ok := index[p.Name]; ok {
			out[i] = p
			continue
		}
		index[p.Name] = len(out)
		out = append(out, p)
	}
	return out
}
