// Package mcptools exposes the manual template operations as MCP tools.
//
// Each tool follows the same shape: a struct holding the template service,
// Definition() returning the mcp.Tool schema and Handle() serving calls.
// Validation failures come back as tool errors so the caller sees the message.
package mcptools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ticket-template/internal/condition"
	"ticket-template/internal/service"
	"ticket-template/internal/templates"
)

const serverName = "ticket-template"

// New builds the MCP server with every template tool registered.
func New(svc *service.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	listTool := NewListTool(svc)
	s.AddTool(listTool.Definition(), listTool.Handle)

	entityTool := NewEntityTool(svc)
	s.AddTool(entityTool.Definition(), entityTool.Handle)

	applyTool := NewApplyTool(svc)
	s.AddTool(applyTool.Definition(), applyTool.Handle)

	removeTool := NewRemoveTool(svc)
	s.AddTool(removeTool.Definition(), removeTool.Handle)

	return s
}

func kindOption() mcp.ToolOption {
	return mcp.WithString("kind",
		mcp.Required(),
		mcp.Enum(string(condition.KindIssue), string(condition.KindArticle)),
		mcp.Description("Entity kind: issue or article."),
	)
}

func parseKind(req mcp.CallToolRequest) (condition.EntityKind, error) {
	kind := condition.EntityKind(strings.TrimSpace(req.GetString("kind", "")))
	if !kind.Valid() {
		return "", fmt.Errorf("kind must be %q or %q", condition.KindIssue, condition.KindArticle)
	}
	return kind, nil
}

// errorResult turns service errors into tool errors.
func errorResult(action string, err error) *mcp.CallToolResult {
	if msg, ok := service.IsValidation(err); ok {
		return mcp.NewToolResultError(msg)
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", action, err))
}

func writeTemplates(sb *strings.Builder, list []templates.Template, valid, used []string) {
	if len(list) == 0 {
		sb.WriteString("No templates.\n")
		return
	}
	for _, t := range list {
		var marks []string
		if contains(valid, t.ID) {
			marks = append(marks, "valid")
		}
		if contains(used, t.ID) {
			marks = append(marks, "applied")
		}
		mode := "manual"
		if t.Automatic() {
			mode = "auto"
		}
		fmt.Fprintf(sb, "- **%s** `%s` (article %s, %s)", t.Name, t.ID, t.ArticleID, mode)
		if len(marks) > 0 {
			fmt.Fprintf(sb, " [%s]", strings.Join(marks, ", "))
		}
		sb.WriteString("\n")
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
