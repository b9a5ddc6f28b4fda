package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pixel-backend/internal/taskstore"
	"github.com/pixel-backend/internal/types"
)

// StartPullRequest is the body of POST /api/data-pull/start. The
// access token is optional: when omitted, the token stored at install
// time is used.
type StartPullRequest struct {
	ShopDomain  string `json:"shop_domain"`
	AccessToken string `json:"access_token,omitempty"`
	Mode        string `json:"mode,omitempty"`
	BatchSize   int    `json:"batch_size,omitempty"`
}

// childStatus is the per-resource slice of a pull status response.
type childStatus struct {
	TaskID string         `json:"task_id"`
	State  types.JobState `json:"state"`
	Detail string         `json:"detail,omitempty"`
}

// handleStartPull starts a full data pull for a shop and returns the
// parent task id to poll.
func (s *Server) handleStartPull(w http.ResponseWriter, r *http.Request) {
	var req StartPullRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid JSON body", nil)
		return
	}

	mode, err := types.ParsePullMode(req.Mode)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	shop, err := s.shops.GetByDomain(r.Context(), req.ShopDomain)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if shop == nil || !shop.IsInstalled {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Shop is not installed", map[string]interface{}{
			"shop_domain": req.ShopDomain,
		})
		return
	}

	token := req.AccessToken
	if token == "" {
		token = shop.AccessToken
	}

	taskID, err := s.orchestrator.StartFullPull(r.Context(), shop.ShopDomain, token, mode, req.BatchSize)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"task_id":     taskID,
		"shop_domain": shop.ShopDomain,
		"mode":        mode,
	})
}

// handlePullStatus reports the state of a pull and all its children.
func (s *Server) handlePullStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	status, err := s.tasks.GetStatus(r.Context(), taskID)
	if errors.Is(err, taskstore.ErrNotFound) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Unknown task id", map[string]interface{}{
			"task_id": taskID,
		})
		return
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response := map[string]interface{}{
		"task_id": taskID,
		"state":   status.State,
	}
	if status.Detail != "" {
		response["detail"] = status.Detail
	}

	if len(status.Children) > 0 {
		children := make(map[types.ResourceType]childStatus, len(status.Children))
		for resource, childID := range status.Children {
			cs := childStatus{TaskID: childID, State: types.JobPending}
			if child, err := s.tasks.GetStatus(r.Context(), childID); err == nil {
				cs.State = child.State
				cs.Detail = child.Detail
			}
			children[resource] = cs
		}
		response["children"] = children
	}

	respondJSON(w, http.StatusOK, response)
}

// handlePullResults returns the fetched records for one resource type of
// a completed pull.
func (s *Server) handlePullResults(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	shop := vars["shop"]
	taskID := vars["task_id"]

	resource, err := types.ParseResourceType(r.URL.Query().Get("resource_type"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	records, err := s.tasks.GetResult(r.Context(), shop, taskID, resource)
	if errors.Is(err, taskstore.ErrNotFound) {
		// Results live under child task ids. Accept the parent id too and
		// resolve it through the parent's child map.
		records, err = s.resultViaParent(r, shop, taskID, resource)
	}
	if errors.Is(err, taskstore.ErrNotFound) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No result for this task and resource (results expire)", map[string]interface{}{
			"task_id":       taskID,
			"resource_type": resource,
		})
		return
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"task_id":       taskID,
		"shop_domain":   shop,
		"resource_type": resource,
		"data":          records,
	})
}

func (s *Server) resultViaParent(r *http.Request, shop, taskID string, resource types.ResourceType) ([]json.RawMessage, error) {
	status, err := s.tasks.GetStatus(r.Context(), taskID)
	if err != nil {
		return nil, err
	}
	childID, ok := status.Children[resource]
	if !ok {
		return nil, taskstore.ErrNotFound
	}
	return s.tasks.GetResult(r.Context(), shop, childID, resource)
}
