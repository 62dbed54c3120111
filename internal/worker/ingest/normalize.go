package ingest

import (
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// lineBreakArtifact はスプレッドシートが改行の代わりに埋め込むプレースホルダ。
const lineBreakArtifact = "_x000D_"

// hexEscapeRun は連続した \xNN エスケープ（リテラルのバックスラッシュ）にマッチする。
var hexEscapeRun = regexp.MustCompile(`(?:\\x[0-9a-fA-F]{2})+`)

// Normalizer はセル値を表示用のテキストに正規化する。
// 文字を戻すだけで、タグに見える部分も含めてテキストは削らない。
type Normalizer struct{}

// NewNormalizer はNormalizerを生成する。
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize は次の順で変換する。
//  1. \xNN エスケープの連続をUTF-8バイト列としてデコード
//  2. HTML実体参照のデコード（1回のみ）
//  3. 改行プレースホルダとCRの除去
//  4. 前後の空白の除去
func (n *Normalizer) Normalize(s string) string {
	s = decodeHexEscapes(s)
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, lineBreakArtifact, "")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(s)
}

// decodeHexEscapes は \xNN の連続を1つのバイト列としてデコードする。
// 結果が不正なUTF-8になる連続は元の表記のまま残す。
func decodeHexEscapes(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	return hexEscapeRun.ReplaceAllStringFunc(s, func(run string) string {
		digits := strings.ReplaceAll(run, `\x`, "")
		b, err := hex.DecodeString(digits)
		if err != nil || !utf8.Valid(b) {
			return run
		}
		return string(b)
	})
}
