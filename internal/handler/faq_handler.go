package handler

import (
	"net/http"

	"github.com/hitoshi/labtrack/internal/faq"
	"github.com/hitoshi/labtrack/internal/middleware"
)

// ListFAQ はFAQを検索語とカテゴリで絞り込んで返す。認証は不要。
// GET /api/faq?q=&category=
func ListFAQ(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items := faq.Filter(faq.All(), q.Get("q"), q.Get("category"))
	middleware.WriteJSON(w, http.StatusOK, items)
}
