// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は利用者が入力した表示名や検索語からHTMLを取り除き、
// APIレスポンスやログにマークアップが紛れ込まないようにする。
// bluemondayのStrictPolicyを使用し、すべてのタグを除去する。
package security

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxTextLength は表示名の最大文字数（rune数）。
const DefaultMaxTextLength = 100

// TextSanitizer はプレーンテキストのサニタイズ機能。
// bluemondayのPolicyはスレッドセーフなので、1つのインスタンスを共有してよい。
type TextSanitizer struct {
	policy    *bluemonday.Policy
	maxLength int
}

// NewTextSanitizer はTextSanitizerを生成する。
// maxLengthが0以下の場合はDefaultMaxTextLengthを使用する。
func NewTextSanitizer(maxLength int) *TextSanitizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxTextLength
	}
	return &TextSanitizer{
		policy:    bluemonday.StrictPolicy(),
		maxLength: maxLength,
	}
}

// SanitizeText はタグを除去し、連続する空白と制御文字を1つの空白にまとめ、
// 前後の空白を取り除いて最大文字数で切り詰める。
// 同一入力に対して常に同一出力を返す。
func (s *TextSanitizer) SanitizeText(raw string) string {
	stripped := html.UnescapeString(s.policy.Sanitize(raw))

	var b strings.Builder
	space := false
	for _, r := range stripped {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	out := b.String()
	if utf8.RuneCountInString(out) > s.maxLength {
		out = strings.TrimSpace(string([]rune(out)[:s.maxLength]))
	}
	return out
}

// DisplayNameFromEmail はメールアドレスのローカル部から表示名を作る。
// ローカル部が空になる場合はメールアドレス全体を使う。
func (s *TextSanitizer) DisplayNameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		local = email
	}
	if name := s.SanitizeText(local); name != "" {
		return name
	}
	return s.SanitizeText(email)
}
