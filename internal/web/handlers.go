package web

import (
	"net/http"
	"strings"

	"aetracker/internal/api"
	"aetracker/internal/store"
)

func (s *Server) handleAEList(w http.ResponseWriter, r *http.Request) {
	aes, err := s.st.ListAEs(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aes)
}

func (s *Server) handleAECreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAERequest
	if !decodeBody(w, r, &req) {
		return
	}
	ae, err := s.st.CreateAE(r.Context(), req.Name, req.Color)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ae)
}

func (s *Server) handleAEDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}
	if err := s.st.DeleteAE(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.OKResponse{OK: true})
}

func (s *Server) handleAEReconcileColors(w http.ResponseWriter, r *http.Request) {
	res, err := s.st.ReconcileAEColors(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if len(res.Unresolved) > 0 {
		s.logger.Warn("palette exhausted during color reconcile", "unresolved", len(res.Unresolved))
	}
	writeJSON(w, http.StatusOK, api.ReconcileResponse{
		OK:         true,
		Changed:    res.Changed(),
		Changes:    res.Changes,
		Unresolved: res.Unresolved,
	})
}

func (s *Server) handleAccountList(w http.ResponseWriter, r *http.Request) {
	accts, err := s.st.ListAccounts(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accts)
}

func (s *Server) handleAccountCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	acct, err := s.st.CreateAccount(r.Context(), req.Name)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) handleAccountDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}
	if err := s.st.DeleteAccount(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.OKResponse{OK: true})
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.st.ListTasks(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if id := strings.TrimSpace(req.AEID); id != "" && !store.ValidID(id) {
		writeError(w, http.StatusBadRequest, validationError(api.Issue{Path: "ae_id", Message: "ae_id must be a UUID"}))
		return
	}
	if req.AccountID != nil {
		if id := strings.TrimSpace(*req.AccountID); id != "" && !store.ValidID(id) {
			writeError(w, http.StatusBadRequest, validationError(api.Issue{Path: "account_id", Message: "account_id must be a UUID"}))
			return
		}
	}
	task, err := s.st.CreateTask(r.Context(), store.NewTask{
		Title:       req.Title,
		Description: req.Description,
		AE:          req.AE,
		Account:     req.Account,
		AEID:        req.AEID,
		AccountID:   req.AccountID,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r.PathValue("id"))
	if !ok {
		return
	}
	var req api.UpdateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	task, err := s.st.UpdateTask(r.Context(), id, store.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		AEID:        req.AEID,
		AccountID:   req.AccountID,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r.PathValue("id"))
	if !ok {
		return
	}
	if err := s.st.DeleteTask(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.OKResponse{OK: true})
}

func (s *Server) handleTaskDescription(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r.PathValue("id"))
	if !ok {
		return
	}
	task, err := s.st.GetTask(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.DescriptionResponse{
		ID:       task.ID,
		Markdown: task.Description,
		HTML:     renderMarkdownHTML(task.Description),
	})
}
