// Package tools registers the Memory Kernel's operations as MCP tools,
// grounded directly on the teacher's go/tools/internal/*/*.go
// Register*Tools(s *server.MCPServer) convention (mcp.NewTool +
// mcp.With* parameter builders, handler returning *mcp.CallToolResult).
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kagent-dev/memoryanchor/internal/checklist"
	"github.com/kagent-dev/memoryanchor/internal/gating"
	"github.com/kagent-dev/memoryanchor/internal/identitystore"
	"github.com/kagent-dev/memoryanchor/internal/kernel"
	"github.com/kagent-dev/memoryanchor/internal/refiner"
)

// RegisterMemoryTools registers every tool from spec.md §6's tool
// table against a bound Memory Kernel, plus the checklist subsystem
// that §1 treats as an external collaborator but §6 still lists in the
// tool table.
func RegisterMemoryTools(s *server.MCPServer, k *kernel.Kernel, cl *checklist.Store) {
	s.AddTool(mcp.NewTool("add_memory",
		mcp.WithDescription("Add a new memory item to the store, subject to confidence gating and the pending-approval path"),
		mcp.WithString("content", mcp.Description("Memory content"), mcp.Required()),
		mcp.WithString("layer", mcp.Description("Target layer: active_context, event_log, verified_fact, operational_knowledge"), mcp.Required()),
		mcp.WithString("category", mcp.Description("Optional free-form category")),
		mcp.WithString("confidence", mcp.Description("Confidence in [0,1] as a decimal string, default 1.0")),
		mcp.WithString("source", mcp.Description("Provenance: caregiver, user, ai_extraction, external_ai"), mcp.Required()),
		mcp.WithString("agent_id", mcp.Description("Originating agent id, required for event_log")),
		mcp.WithString("created_by", mcp.Description("Human or system identifier that created this item")),
	), handleAddMemory(k))

	s.AddTool(mcp.NewTool("search_memory",
		mcp.WithDescription("Search memory items by semantic similarity, optionally scoped to one layer"),
		mcp.WithString("query", mcp.Description("Search text"), mcp.Required()),
		mcp.WithString("layer", mcp.Description("Optional layer filter")),
		mcp.WithString("category", mcp.Description("Optional category filter")),
		mcp.WithString("limit", mcp.Description("Max results as an integer string, default 10")),
		mcp.WithString("min_score", mcp.Description("Minimum cosine score as a decimal string, default 0")),
		mcp.WithString("include_constitution", mcp.Description("Prepend identity_schema results ahead of the match set (true/false)")),
		mcp.WithString("agent_id", mcp.Description("Agent filter, applied only when layer=event_log")),
	), handleSearchMemory(k))

	s.AddTool(mcp.NewTool("get_constitution",
		mcp.WithDescription("Return the project's identity_schema (constitution) items"),
	), handleGetConstitution(k))

	s.AddTool(mcp.NewTool("delete_memory",
		mcp.WithDescription("Delete a memory item by id; high-risk, requires a literal confirmation phrase"),
		mcp.WithString("id", mcp.Description("Memory item id"), mcp.Required()),
		mcp.WithString("confirmation", mcp.Description("Must contain a confirmation phrase such as \"confirm delete\" or \"我确认\""), mcp.Required()),
	), handleDeleteMemory(k))

	s.AddTool(mcp.NewTool("propose_constitution_change",
		mcp.WithDescription("Propose a create/update/delete change to an identity_schema item, entering the N-of-M approval workflow"),
		mcp.WithString("change_type", mcp.Description("create, update, or delete"), mcp.Required()),
		mcp.WithString("proposed_content", mcp.Description("New content for create/update")),
		mcp.WithString("reason", mcp.Description("Justification for the change"), mcp.Required()),
		mcp.WithString("target_id", mcp.Description("Existing item id, required for update/delete")),
		mcp.WithString("category", mcp.Description("Optional category")),
		mcp.WithString("proposer", mcp.Description("Identifier of the proposer"), mcp.Required()),
	), handleProposeChange(k))

	s.AddTool(mcp.NewTool("log_event",
		mcp.WithDescription("Log an episodic event into the event_log layer"),
		mcp.WithString("content", mcp.Description("Event description"), mcp.Required()),
		mcp.WithString("where", mcp.Description("Event location")),
		mcp.WithString("who", mcp.Description("Comma-separated participants")),
		mcp.WithString("agent_id", mcp.Description("Originating agent id")),
		mcp.WithString("created_by", mcp.Description("Human or system identifier")),
		mcp.WithString("ttl_days", mcp.Description("Days until this event expires, as an integer string")),
	), handleLogEvent(k))

	s.AddTool(mcp.NewTool("search_events",
		mcp.WithDescription("Search the event_log layer, optionally hinting where/who"),
		mcp.WithString("query", mcp.Description("Search text"), mcp.Required()),
		mcp.WithString("where", mcp.Description("Location hint")),
		mcp.WithString("who", mcp.Description("Comma-separated participant hint")),
		mcp.WithString("limit", mcp.Description("Max results as an integer string, default 10")),
		mcp.WithString("agent_id", mcp.Description("Agent filter")),
	), handleSearchEvents(k))

	s.AddTool(mcp.NewTool("promote_to_fact",
		mcp.WithDescription("Promote an event_log item to a verified_fact"),
		mcp.WithString("event_id", mcp.Description("Event item id"), mcp.Required()),
		mcp.WithString("verified_by", mcp.Description("Identifier of the verifier"), mcp.Required()),
		mcp.WithString("notes", mcp.Description("Optional verification notes")),
	), handlePromoteToFact(k))

	s.AddTool(mcp.NewTool("refine_memory",
		mcp.WithDescription("Summarize a list of memories against a query via Observation Masking: recent entries are kept verbatim, older ones compressed"),
		mcp.WithString("query", mcp.Description("The question or topic the summary should serve"), mcp.Required()),
		mcp.WithString("memories", mcp.Description("JSON array of {content, layer, score} objects, most-recent-first"), mcp.Required()),
		mcp.WithString("max_output_chars", mcp.Description("Soft cap on the refined content length, as an integer string, default 10000")),
	), handleRefineMemory())

	s.AddTool(mcp.NewTool("search_operations",
		mcp.WithDescription("Keyword-search the operational_knowledge (L4) markdown export for a matching SOP or workflow"),
		mcp.WithString("query", mcp.Description("Search text"), mcp.Required()),
		mcp.WithString("include_content", mcp.Description("Return each match's full markdown body (true/false)")),
	), handleSearchOperations(k))

	s.AddTool(mcp.NewTool("create_checklist_item",
		mcp.WithDescription("Create a checklist item tracked outside the core memory layers, for the Plan skill to later sync completion against"),
		mcp.WithString("content", mcp.Description("Checklist item text"), mcp.Required()),
		mcp.WithString("scope", mcp.Description("project, repo, or global, default project")),
		mcp.WithString("priority", mcp.Description("1 (critical) to 5 (backlog) as an integer string, default 3")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("project_id", mcp.Description("Owning project id")),
	), handleCreateChecklistItem(cl))

	s.AddTool(mcp.NewTool("get_checklist_briefing",
		mcp.WithDescription("Return a markdown summary of open checklist items grouped by priority"),
		mcp.WithString("scope", mcp.Description("project, repo, or global; omit for all scopes")),
		mcp.WithString("limit", mcp.Description("Max items as an integer string, default unlimited")),
	), handleGetChecklistBriefing(cl))

	s.AddTool(mcp.NewTool("sync_plan_to_checklist",
		mcp.WithDescription("Apply a Plan skill's completion report to checklist items, matched by their (ma:<id>) reference"),
		mcp.WithString("updates", mcp.Description(`JSON object mapping "ma:<id>" to a status (open/done/snoozed)`), mcp.Required()),
	), handleSyncPlanToChecklist(cl))
}

// parseFloatDefault mirrors the teacher's string-first parameter
// handling (mcp.ParseString used even for numeric/boolean fields,
// e.g. `mcp.ParseString(request, "dry_run", "") == "true"` in
// go/tools) since mark3labs/mcp-go's typed With/Parse helpers beyond
// string are not evidenced anywhere in the retrieved pack.
func parseFloatDefault(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func textResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func handleAddMemory(k *kernel.Kernel) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		confidence := parseFloatDefault(mcp.ParseString(request, "confidence", ""), 1.0)
		res, err := k.AddMemory(ctx, kernel.AddRequest{
			Content:    mcp.ParseString(request, "content", ""),
			Layer:      mcp.ParseString(request, "layer", ""),
			Category:   mcp.ParseString(request, "category", ""),
			Confidence: confidence,
			Source:     mcp.ParseString(request, "source", ""),
			AgentID:    mcp.ParseString(request, "agent_id", ""),
			CreatedBy:  mcp.ParseString(request, "created_by", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return textResult(res)
	}
}

func handleSearchMemory(k *kernel.Kernel) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := parseIntDefault(mcp.ParseString(request, "limit", ""), 10)
		results, err := k.SearchMemory(ctx, kernel.SearchRequest{
			Query:               mcp.ParseString(request, "query", ""),
			Layer:               mcp.ParseString(request, "layer", ""),
			Category:            mcp.ParseString(request, "category", ""),
			Limit:               limit,
			MinScore:            parseFloatDefault(mcp.ParseString(request, "min_score", ""), 0),
			IncludeConstitution: mcp.ParseString(request, "include_constitution", "") == "true",
			AgentID:             mcp.ParseString(request, "agent_id", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return textResult(results)
	}
}

func handleGetConstitution(k *kernel.Kernel) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		results, err := k.GetConstitution(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return textResult(results)
	}
}

func handleDeleteMemory(k *kernel.Kernel) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawID := mcp.ParseString(request, "id", "")
		id, err := parseUUID(rawID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		confirmation := mcp.ParseString(request, "confirmation", "")
		if !gating.IsConfirmed(confirmation) {
			return mcp.NewToolResultError("delete_memory requires a confirmation phrase, e.g. \"confirm delete\""), nil
		}
		if err := k.DeleteMemory(ctx, id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("deleted"), nil
	}
}

func handleProposeChange(k *kernel.Kernel) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		changeType := identitystore.ChangeType(mcp.ParseString(request, "change_type", ""))
		change, err := k.Approvals().Propose(ctx, changeType,
			mcp.ParseString(request, "proposed_content", ""),
			mcp.ParseString(request, "reason", ""),
			mcp.ParseString(request, "target_id", ""),
			mcp.ParseString(request, "category", ""),
			mcp.ParseString(request, "proposer", ""),
		)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return textResult(change)
	}
}

func handleLogEvent(k *kernel.Kernel) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		who := splitCommaList(mcp.ParseString(request, "who", ""))
		ttlDays := parseIntDefault(mcp.ParseString(request, "ttl_days", ""), 0)
		res, err := k.LogEvent(ctx,
			mcp.ParseString(request, "content", ""),
			nil,
			mcp.ParseString(request, "where", ""),
			who,
			mcp.ParseString(request, "agent_id", ""),
			mcp.ParseString(request, "created_by", ""),
			ttlDays,
		)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return textResult(res)
	}
}

func handleSearchEvents(k *kernel.Kernel) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		who := splitCommaList(mcp.ParseString(request, "who", ""))
		limit := parseIntDefault(mcp.ParseString(request, "limit", ""), 10)
		results, err := k.SearchEvents(ctx,
			mcp.ParseString(request, "query", ""),
			mcp.ParseString(request, "where", ""),
			who,
			limit,
			mcp.ParseString(request, "agent_id", ""),
		)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return textResult(results)
	}
}

func handlePromoteToFact(k *kernel.Kernel) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := parseUUID(mcp.ParseString(request, "event_id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		fact, err := k.PromoteEventToFact(ctx, id,
			mcp.ParseString(request, "verified_by", ""),
			mcp.ParseString(request, "notes", ""),
		)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return textResult(fact)
	}
}

// handleRefineMemory is the summarization helper from spec.md §6:
// Observation Masking over a caller-supplied memory list, compressed by
// whichever LLM provider MA_REFINE_LLM_PROVIDER selects, falling back to
// deterministic head/tail elision when none is configured or the call
// fails (see internal/refiner and DESIGN.md).
func handleRefineMemory() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := mcp.ParseString(request, "query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		var memories []refiner.Memory
		if err := json.Unmarshal([]byte(mcp.ParseString(request, "memories", "[]")), &memories); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("memories: invalid JSON array: %v", err)), nil
		}
		maxChars := parseIntDefault(mcp.ParseString(request, "max_output_chars", ""), 0)
		rf, err := refiner.NewFromEnv()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result := rf.Refine(ctx, query, memories, maxChars)
		return textResult(result)
	}
}

func handleSearchOperations(k *kernel.Kernel) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		includeContent := mcp.ParseString(request, "include_content", "") == "true"
		result, err := k.SearchOperations(mcp.ParseString(request, "query", ""), includeContent)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return textResult(result)
	}
}

func handleCreateChecklistItem(cl *checklist.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		priority := parseIntDefault(mcp.ParseString(request, "priority", ""), checklist.PriorityNormal)
		item := cl.Create(
			mcp.ParseString(request, "project_id", ""),
			mcp.ParseString(request, "content", ""),
			checklist.Scope(mcp.ParseString(request, "scope", "")),
			priority,
			splitCommaList(mcp.ParseString(request, "tags", "")),
		)
		return textResult(item)
	}
}

func handleGetChecklistBriefing(cl *checklist.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := parseIntDefault(mcp.ParseString(request, "limit", ""), 0)
		briefing := cl.Briefing(checklist.Scope(mcp.ParseString(request, "scope", "")), limit)
		return mcp.NewToolResultText(briefing), nil
	}
}

func handleSyncPlanToChecklist(cl *checklist.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var updates map[string]checklist.Status
		if err := json.Unmarshal([]byte(mcp.ParseString(request, "updates", "{}")), &updates); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid updates: %v", err)), nil
		}
		return textResult(cl.SyncFromPlan(updates))
	}
}

func splitCommaList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseUUID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}
