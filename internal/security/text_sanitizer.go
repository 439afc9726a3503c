package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/blitznow/ridertraining/internal/model"
)

// TextSanitizer はチュートリアル本文からマークアップを取り除く。
// アプリはテキストとして表示するため、タグは全て除去し実体参照は元の文字に戻す。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去したプレーンテキストを返す。前後の空白は取り除く。
func (s *TextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// SanitizeTutorial はチュートリアルのtitle・subtitle・descriptionを上書きでサニタイズする。
func (s *TextSanitizer) SanitizeTutorial(t *model.Tutorial) {
	t.Title = s.Sanitize(t.Title)
	t.Subtitle = s.Sanitize(t.Subtitle)
	t.Description = s.Sanitize(t.Description)
}
