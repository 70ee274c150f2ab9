package site

import (
	"bytes"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/m3u8gen/internal/domain"
)

// Page 是一次 DOM 快照的解析结果。
type Page struct {
	// CourseTitle 是原始文本（未清洗）；页面上找不到时为空。
	CourseTitle string
	// Rows 是全部行元素（含页面重复渲染的部分），按 DOM 顺序。
	Rows []domain.VideoRow
}

// Parse 把渲染后的页面 HTML 解析为 Page。必须是纯函数：相同输入 => 相同输出。
func Parse(p Profile, html []byte) (Page, error) {
	if len(html) == 0 {
		return Page{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Page{}, err
	}

	var out Page
	if sel := strings.TrimSpace(p.CourseTitleSelector); sel != "" {
		out.CourseTitle = innerText(doc.Find(sel).First())
	}

	doc.Find(p.RowSelector).Each(func(i int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		row := domain.VideoRow{
			Ordinal: i,
			Index:   i + 1,
			ID:      strings.TrimSpace(id),
		}
		if t := s.Find(p.RowTitleSelector).First(); t.Length() > 0 {
			row.HasTitle = true
			row.RawTitle = innerText(t)
		}
		out.Rows = append(out.Rows, row)
	})
	return out, nil
}

// Canonical 去掉页面重复渲染的行，保持 DOM 顺序。
func Canonical(p Profile, rows []domain.VideoRow) []domain.VideoRow {
	switch p.Dedup {
	case DedupID:
		seen := make(map[string]struct{}, len(rows))
		out := make([]domain.VideoRow, 0, len(rows))
		for _, r := range rows {
			if r.ID != "" {
				if _, ok := seen[r.ID]; ok {
					continue
				}
				seen[r.ID] = struct{}{}
			}
			out = append(out, r)
		}
		return out
	default:
		n := (len(rows) + 1) / 2
		return append([]domain.VideoRow(nil), rows[:n]...)
	}
}

// innerText 近似浏览器 innerText：合并文本节点并折叠空白。
func innerText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
