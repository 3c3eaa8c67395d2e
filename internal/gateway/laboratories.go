package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/labtrack/internal/model"
)

// Laboratory はAPIが返す研究室情報。
type Laboratory struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	Capacity       int    `json:"capacity"`
	CurrentMembers int    `json:"currentMembers"`
	IsJoined       bool   `json:"isJoined"`
}

// AvailableSpots は残り参加可能人数を返す。
func (l Laboratory) AvailableSpots() int {
	if n := l.Capacity - l.CurrentMembers; n > 0 {
		return n
	}
	return 0
}

// JoinResult は研究室参加の結果。
type JoinResult struct {
	Laboratory      Laboratory               `json:"laboratory"`
	Recommendations model.LabRecommendations `json:"recommendations"`
}

// ListLaboratories は研究室一覧を取得する。queryが空でなければ名前・説明・場所で絞り込む。
func (c *Client) ListLaboratories(ctx context.Context, query string) ([]Laboratory, error) {
	path := "/api/laboratories"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var labs []Laboratory
	if err := c.do(ctx, http.MethodGet, path, nil, &labs); err != nil {
		return nil, err
	}
	return labs, nil
}

// JoinLaboratory はアンケート回答を送信して研究室に参加する。
func (c *Client) JoinLaboratory(ctx context.Context, labID string, answers model.ChecklistAnswers) (*JoinResult, error) {
	var result JoinResult
	path := "/api/laboratories/" + url.PathEscape(labID) + "/join"
	if err := c.do(ctx, http.MethodPost, path, answers, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LeaveLaboratory は研究室から退出する。
func (c *Client) LeaveLaboratory(ctx context.Context, labID string) error {
	path := "/api/laboratories/" + url.PathEscape(labID) + "/membership"
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListFAQ はFAQ一覧を取得する。
func (c *Client) ListFAQ(ctx context.Context) ([]model.FAQItem, error) {
	var items []model.FAQItem
	if err := c.do(ctx, http.MethodGet, "/api/faq", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}
