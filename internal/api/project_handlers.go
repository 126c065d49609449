package api

import (
	"encoding/json"
	"net/http"

	"ticket-template/internal/condition"
	"ticket-template/internal/service"
)

type addTemplateRequest struct {
	Template json.RawMessage `json:"template"`
}

type removeTemplateRequest struct {
	ID string `json:"id"`
}

// projectRoutes 处理 /api/projects/{project}/{action}
func (h *handler) projectRoutes(w http.ResponseWriter, r *http.Request) {
	projectID, action, ok := splitPath(r.URL.Path, "/api/projects/")
	if !ok || action == "" {
		writeFailure(w, http.StatusNotFound, "not found")
		return
	}
	switch action {
	case "templates":
		h.projectTemplates(w, r, projectID)
	case "addTemplate":
		h.addTemplate(w, r, projectID)
	case "removeTemplate":
		h.removeTemplate(w, r, projectID)
	case "getProjectInfo":
		h.projectInfo(w, r, projectID)
	case "getTemplateArticles":
		h.templateArticles(w, r, projectID)
	case "issues":
		h.createEntity(w, r, projectID, condition.KindIssue)
	case "articles":
		h.createEntity(w, r, projectID, condition.KindArticle)
	default:
		writeFailure(w, http.StatusNotFound, "not found")
	}
}

func (h *handler) projectTemplates(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	list, err := h.svc.Templates(projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "templates": list})
}

func (h *handler) addTemplate(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req addTemplateRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	list, err := h.svc.AddTemplate(projectID, req.Template)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "templates": list})
}

func (h *handler) removeTemplate(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodDelete && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req removeTemplateRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	if req.ID == "" {
		req.ID = r.URL.Query().Get("id")
	}
	list, err := h.svc.RemoveTemplate(projectID, req.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "templates": list})
}

func (h *handler) projectInfo(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	info, err := h.svc.ProjectInfo(projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"stateFields": info.StateFields,
		"enumFields":  info.EnumFields,
	})
}

func (h *handler) templateArticles(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	articles, err := h.svc.TemplateArticles(projectID, r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "articles": articles})
}

func (h *handler) createEntity(w http.ResponseWriter, r *http.Request, projectID string, kind condition.EntityKind) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.svc.Store().ListEntities(projectID, kind)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": list})
	case http.MethodPost:
		var in service.CreateInput
		if err := decodeBody(r, &in); err != nil {
			writeFailure(w, http.StatusBadRequest, "Invalid JSON body.")
			return
		}
		entity, result, err := h.svc.CreateEntity(projectID, kind, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "entity": entity, "rule": result})
	default:
		methodNotAllowed(w)
	}
}
