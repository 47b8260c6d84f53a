package httpx

import (
	"encoding/json"
	"net/http"

	"codeblocks/internal/store"
	"codeblocks/pkg/auth"
)

type CodeBlocksAPI struct{ DB *store.Postgres }

type listItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// blockResponse carries everything the room page needs, the solution
// included: the correctness check is done by the caller, not the server.
type blockResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	InitialCode string `json:"initialCode"`
	Solution    string `json:"solution"`
}

type upsertBlockReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	InitialCode string `json:"initialCode"`
	Solution    string `json:"solution"`
}

// List returns id + title for the lobby page
func (a *CodeBlocksAPI) List(w http.ResponseWriter, r *http.Request) {
	blocks, err := a.DB.ListCodeBlocks(r.Context(), 100, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]listItem, 0, len(blocks))
	for _, cb := range blocks {
		resp = append(resp, listItem{ID: cb.ID, Title: cb.Title})
	}
	writeJSON(w, resp)
}

// Get returns one codeblock with its seed code and solution
func (a *CodeBlocksAPI) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	cb, err := a.DB.GetCodeBlock(r.Context(), id)
	if err != nil {
		http.Error(w, "codeblock not found", http.StatusNotFound)
		return
	}
	writeJSON(w, toBlockResponse(cb))
}

// Create adds a new exercise for the authenticated author
func (a *CodeBlocksAPI) Create(w http.ResponseWriter, r *http.Request) {
	var req upsertBlockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	uid := auth.UserID(r.Context())
	cb, err := a.DB.CreateCodeBlock(r.Context(), req.Title, req.Description, req.InitialCode, req.Solution, uid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, toBlockResponse(cb))
}

// Update replaces an existing exercise's content
func (a *CodeBlocksAPI) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	var req upsertBlockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	cb, err := a.DB.UpdateCodeBlock(r.Context(), id, req.Title, req.Description, req.InitialCode, req.Solution)
	if err != nil {
		http.Error(w, "codeblock not found", http.StatusNotFound)
		return
	}
	writeJSON(w, toBlockResponse(cb))
}

func toBlockResponse(cb store.CodeBlock) blockResponse {
	return blockResponse{
		ID:          cb.ID,
		Title:       cb.Title,
		Description: cb.Description,
		InitialCode: cb.InitialCode,
		Solution:    cb.Solution,
	}
}

// send JSON with proper headers
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
