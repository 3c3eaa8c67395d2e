package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/labtrack/internal/laboratory"
	"github.com/hitoshi/labtrack/internal/middleware"
	"github.com/hitoshi/labtrack/internal/model"
)

// LaboratoryServiceInterface は研究室ハンドラーが必要とするサービスインターフェース。
type LaboratoryServiceInterface interface {
	List(ctx context.Context, userID, query string) ([]model.LaboratoryWithMembership, error)
	Join(ctx context.Context, userID, labID string, answers model.ChecklistAnswers) (*laboratory.JoinResult, error)
	Leave(ctx context.Context, userID, labID string) error
}

// LaboratoryHandler は研究室一覧・参加・退出のHTTPハンドラー。
type LaboratoryHandler struct {
	service LaboratoryServiceInterface
}

// NewLaboratoryHandler はLaboratoryHandlerを生成する。
func NewLaboratoryHandler(service LaboratoryServiceInterface) *LaboratoryHandler {
	return &LaboratoryHandler{service: service}
}

// laboratoryResponse はAPIレスポンス用の研究室情報。
type laboratoryResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	Capacity       int    `json:"capacity"`
	CurrentMembers int    `json:"currentMembers"`
	IsJoined       bool   `json:"isJoined"`
}

type joinResponse struct {
	Laboratory      laboratoryResponse       `json:"laboratory"`
	Recommendations model.LabRecommendations `json:"recommendations"`
}

// ListLaboratories は研究室一覧を返す。
// GET /api/laboratories?q=
func (h *LaboratoryHandler) ListLaboratories(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	labs, err := h.service.List(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]laboratoryResponse, len(labs))
	for i, lab := range labs {
		resp[i] = toLaboratoryResponse(lab)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// JoinLaboratory はアンケート回答を受け取り研究室に参加する。
// POST /api/laboratories/{id}/join
func (h *LaboratoryHandler) JoinLaboratory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var answers model.ChecklistAnswers
	if err := decodeJSON(r, &answers); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Join(r.Context(), userID, chi.URLParam(r, "id"), answers)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, joinResponse{
		Laboratory:      toLaboratoryResponse(result.Laboratory),
		Recommendations: result.Recommendations,
	})
}

// LeaveLaboratory は研究室から退出する。
// DELETE /api/laboratories/{id}/membership
func (h *LaboratoryHandler) LeaveLaboratory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Leave(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, nil)
}

func toLaboratoryResponse(lab model.LaboratoryWithMembership) laboratoryResponse {
	return laboratoryResponse{
		ID:             lab.ID,
		Name:           lab.Name,
		Description:    lab.Description,
		Location:       lab.Location,
		Capacity:       lab.Capacity,
		CurrentMembers: lab.CurrentMembers,
		IsJoined:       lab.IsJoined,
	}
}
