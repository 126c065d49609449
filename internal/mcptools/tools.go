package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"ticket-template/internal/condition"
	"ticket-template/internal/service"
)

// ListTool handles template_list.
type ListTool struct {
	svc *service.Service
}

func NewListTool(svc *service.Service) *ListTool {
	return &ListTool{svc: svc}
}

func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("template_list",
		mcp.WithDescription("List the content templates configured for a project."),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project id, e.g. DEMO."),
		),
	)
}

func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := strings.TrimSpace(req.GetString("project", ""))
	if projectID == "" {
		return mcp.NewToolResultError("project is required"), nil
	}
	list, err := t.svc.Templates(projectID)
	if err != nil {
		return errorResult("list templates", err), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Templates of %s (%d)\n\n", projectID, len(list))
	writeTemplates(&sb, list, nil, nil)
	return mcp.NewToolResultText(sb.String()), nil
}

// EntityTool handles entity_templates.
type EntityTool struct {
	svc *service.Service
}

func NewEntityTool(svc *service.Service) *EntityTool {
	return &EntityTool{svc: svc}
}

func (t *EntityTool) Definition() mcp.Tool {
	return mcp.NewTool("entity_templates",
		mcp.WithDescription("Show which templates are valid for an issue or article and which are already applied."),
		kindOption(),
		mcp.WithString("entity_id",
			mcp.Required(),
			mcp.Description("Issue or article id."),
		),
	)
}

func (t *EntityTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := parseKind(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entityID := strings.TrimSpace(req.GetString("entity_id", ""))
	if entityID == "" {
		return mcp.NewToolResultError("entity_id is required"), nil
	}
	view, err := t.svc.EntityTemplates(kind, entityID)
	if err != nil {
		return errorResult("load entity templates", err), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Templates for %s %s\n\n", kind, view.EntityID)
	writeTemplates(&sb, view.Templates, view.ValidTemplateIDs, view.UsedTemplateIDs)
	return mcp.NewToolResultText(sb.String()), nil
}

// ApplyTool handles template_apply.
type ApplyTool struct {
	svc *service.Service
}

func NewApplyTool(svc *service.Service) *ApplyTool {
	return &ApplyTool{svc: svc}
}

func (t *ApplyTool) Definition() mcp.Tool {
	return mcp.NewTool("template_apply",
		mcp.WithDescription("Append a template's article content to an issue description or article body."),
		kindOption(),
		mcp.WithString("entity_id", mcp.Required(), mcp.Description("Issue or article id.")),
		mcp.WithString("template_id", mcp.Required(), mcp.Description("Template id from template_list.")),
	)
}

func (t *ApplyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return manual(req, t.svc.AddEntityTemplate, "Applied")
}

// RemoveTool handles template_remove.
type RemoveTool struct {
	svc *service.Service
}

func NewRemoveTool(svc *service.Service) *RemoveTool {
	return &RemoveTool{svc: svc}
}

func (t *RemoveTool) Definition() mcp.Tool {
	return mcp.NewTool("template_remove",
		mcp.WithDescription("Remove a previously applied template block from an issue or article."),
		kindOption(),
		mcp.WithString("entity_id", mcp.Required(), mcp.Description("Issue or article id.")),
		mcp.WithString("template_id", mcp.Required(), mcp.Description("Template id to remove.")),
	)
}

func (t *RemoveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return manual(req, t.svc.RemoveEntityTemplate, "Removed")
}

type manualFunc func(kind condition.EntityKind, entityID, templateID string) (service.ManualResult, error)

func manual(req mcp.CallToolRequest, fn manualFunc, verb string) (*mcp.CallToolResult, error) {
	kind, err := parseKind(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entityID := strings.TrimSpace(req.GetString("entity_id", ""))
	templateID := strings.TrimSpace(req.GetString("template_id", ""))
	if entityID == "" {
		return mcp.NewToolResultError("entity_id is required"), nil
	}
	result, err := fn(kind, entityID, templateID)
	if err != nil {
		return errorResult(strings.ToLower(verb)+" template", err), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s template %s on %s %s.\n", verb, templateID, kind, result.EntityID)
	if result.CharsRemoved > 0 {
		fmt.Fprintf(&sb, "%d characters removed.\n", result.CharsRemoved)
	}
	fmt.Fprintf(&sb, "Applied templates: %s\n\n", strings.Join(result.UsedTemplateIDs, ", "))
	sb.WriteString("### Content\n\n")
	sb.WriteString(result.Content)
	sb.WriteString("\n")
	return mcp.NewToolResultText(sb.String()), nil
}
