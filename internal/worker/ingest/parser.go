package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RequiredColumns はパーク定義シートに必須の列見出し。
var RequiredColumns = []string{"Name", "Type", "Specialization", "Specialization Effects"}

// Row はシート上の1行分の必須列の値。Cellsの並びはRequiredColumnsと同じ。
type Row struct {
	Line  int // シート上の行番号（1始まり、見出しが1行目）
	Cells [4]string
}

// ParseWorkbook はxlsxの先頭シートを読み、1行目を見出しとして必須列の値を取り出す。
// 必須列が1つでも欠けていればErrSchemaInvalidを返す。
// 行末の空セルや欠けたセルは空文字列として扱う。
func ParseWorkbook(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: ワークブックを開けません: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrSchemaInvalid)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: シート %q の読み取りに失敗: %v", ErrSourceUnavailable, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrSchemaInvalid, sheets[0])
	}

	index, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		row := Row{Line: i + 2}
		for j, col := range index {
			if col < len(cells) {
				row.Cells[j] = cells[col]
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// columnIndex は必須列ごとに見出し行での位置を返す。同名の見出しは最初の列を使う。
func columnIndex(header []string) ([4]int, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}

	var index [4]int
	var missing []string
	for j, name := range RequiredColumns {
		pos, ok := positions[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		index[j] = pos
	}
	if len(missing) > 0 {
		return index, fmt.Errorf("%w: missing columns %v", ErrSchemaInvalid, missing)
	}
	return index, nil
}
