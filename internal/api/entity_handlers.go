package api

import (
	"net/http"

	"ticket-template/internal/condition"
	"ticket-template/internal/service"
)

type entityTemplateRequest struct {
	TemplateID string `json:"templateId"`
}

func (h *handler) issueRoutes(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitPath(r.URL.Path, "/api/issues/")
	if !ok {
		writeFailure(w, http.StatusNotFound, "not found")
		return
	}
	h.entityRoutes(w, r, condition.KindIssue, id, action)
}

func (h *handler) articleRoutes(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitPath(r.URL.Path, "/api/articles/")
	if !ok {
		writeFailure(w, http.StatusNotFound, "not found")
		return
	}
	switch action {
	case "getArticleInfo":
		h.articleInfo(w, r, id)
		return
	case "setArticleInfo":
		h.setArticleInfo(w, r, id)
		return
	}
	h.entityRoutes(w, r, condition.KindArticle, id, action)
}

// entityRoutes 为 issue 与 article 共享的路由
func (h *handler) entityRoutes(w http.ResponseWriter, r *http.Request, kind condition.EntityKind, id, action string) {
	switch action {
	case "":
		h.getEntity(w, r, kind, id)
	case "templates":
		h.entityTemplates(w, r, kind, id)
	case "addTemplate":
		h.manualTemplate(w, r, kind, id, true)
	case "removeTemplate":
		h.manualTemplate(w, r, kind, id, false)
	case "changes":
		h.changeEntity(w, r, kind, id)
	default:
		writeFailure(w, http.StatusNotFound, "not found")
	}
}

func (h *handler) getEntity(w http.ResponseWriter, r *http.Request, kind condition.EntityKind, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	entity, err := h.svc.Store().GetEntityOfKind(id, kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entity": entity})
}

func (h *handler) entityTemplates(w http.ResponseWriter, r *http.Request, kind condition.EntityKind, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	view, err := h.svc.EntityTemplates(kind, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"templates":        view.Templates,
		"validTemplateIds": view.ValidTemplateIDs,
		"usedTemplateIds":  view.UsedTemplateIDs,
	})
}

func (h *handler) manualTemplate(w http.ResponseWriter, r *http.Request, kind condition.EntityKind, id string, add bool) {
	if add && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !add && r.Method != http.MethodDelete && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req entityTemplateRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	var (
		result service.ManualResult
		err    error
	)
	if add {
		result, err = h.svc.AddEntityTemplate(kind, id, req.TemplateID)
	} else {
		result, err = h.svc.RemoveEntityTemplate(kind, id, req.TemplateID)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"content":          result.Content,
		"charsRemoved":     result.CharsRemoved,
		"templates":        result.Templates,
		"validTemplateIds": result.ValidTemplateIDs,
		"usedTemplateIds":  result.UsedTemplateIDs,
	})
}

func (h *handler) changeEntity(w http.ResponseWriter, r *http.Request, kind condition.EntityKind, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var in service.ChangeInput
	if err := decodeBody(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	entity, result, err := h.svc.ChangeEntity(kind, id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entity": entity, "rule": result})
}

func (h *handler) articleInfo(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	info, err := h.svc.ArticleInfo(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "articleId": info.ArticleID, "isTemplate": info.IsTemplate})
}

func (h *handler) setArticleInfo(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var in service.ArticleInfoInput
	if err := decodeBody(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	if in.ArticleID == nil {
		in.ArticleID = &id
	}
	info, err := h.svc.SetArticleInfo(id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "articleId": info.ArticleID, "isTemplate": info.IsTemplate})
}
