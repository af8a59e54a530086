package mcptools

import (
	"context"
	"encoding/json"

	"github.com/ticketfire/backend/internal/db"
)

// toolDefinitions lists the seven read-only aggregation tools, their
// argument shapes and allowed-field sets.
var toolDefinitions = []map[string]interface{}{
	{
		"name": "get_ticket_stats",
		"description": "Return aggregated statistics over all tickets: total count, " +
			"assigned/unassigned counts, average priority, and breakdowns by segment, " +
			"request type, sentiment, language, assigned manager level and office.",
		"inputSchema": map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
	},
	{
		"name": "get_cross_breakdown",
		"description": "Cross-tabulate ticket counts by two fields simultaneously, e.g. " +
			"'sentiment by segment'. Valid fields: client_segment, request_type, sentiment, " +
			"language, assigned_office, assigned_manager_level, gender, country, region, city.",
		"inputSchema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"group_by":        map[string]interface{}{"type": "string"},
				"secondary_group": map[string]interface{}{"type": "string"},
			},
			"required": []string{"group_by", "secondary_group"},
		},
	},
	{
		"name":        "get_tickets",
		"description": "Return up to `limit` tickets (default 30; a limit above 500 falls back to 100), " +
			"highest priority first. Every column is returned; description and next_actions are not omitted.",
		"inputSchema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"limit": map[string]interface{}{"type": "integer"},
			},
		},
	},
	{
		"name": "filter_tickets",
		"description": "Return tickets where `field` equals `value` (case-insensitive), up to " +
			"`limit` rows (max 50). Valid fields: city, country, region, client_segment, " +
			"request_type, sentiment, language, gender, assigned_manager_name, " +
			"assigned_manager_level, assigned_office.",
		"inputSchema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"field": map[string]interface{}{"type": "string"},
				"value": map[string]interface{}{"type": "string"},
				"limit": map[string]interface{}{"type": "integer"},
			},
			"required": []string{"field", "value"},
		},
	},
	{
		"name": "get_age_stats",
		"description": "Return average/min/max client age computed from date_of_birth, " +
			"optionally scoped by one filter_field+filter_value pair.",
		"inputSchema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"filter_field": map[string]interface{}{"type": "string"},
				"filter_value": map[string]interface{}{"type": "string"},
			},
		},
	},
	{
		"name":        "get_priority_breakdown",
		"description": "Return the count of tickets at each priority level (1-10).",
		"inputSchema": map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
	},
	{
		"name":        "get_manager_workloads",
		"description": "Return each assigned manager's ticket count and office, sorted descending.",
		"inputSchema": map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
	},
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (interface{}, interface{}) {
	var call struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, map[string]interface{}{"code": -32602, "message": "invalid params"}
	}

	var data interface{}
	var err error

	switch call.Name {
	case "get_ticket_stats":
		data, err = s.store.TicketStats(ctx)
	case "get_cross_breakdown":
		groupBy, _ := call.Arguments["group_by"].(string)
		secondary, _ := call.Arguments["secondary_group"].(string)
		data, err = s.store.CrossBreakdown(ctx, groupBy, secondary)
	case "get_tickets":
		data, err = s.store.ListTickets(ctx, db.TicketQuery{Limit: intArg(call.Arguments, "limit", 30)})
	case "filter_tickets":
		field, _ := call.Arguments["field"].(string)
		value, _ := call.Arguments["value"].(string)
		data, err = s.store.FilterTickets(ctx, field, value, intArg(call.Arguments, "limit", 30))
	case "get_age_stats":
		field, _ := call.Arguments["filter_field"].(string)
		value, _ := call.Arguments["filter_value"].(string)
		data, err = s.store.AgeStats(ctx, field, value)
	case "get_priority_breakdown":
		data, err = s.store.PriorityBreakdown(ctx)
	case "get_manager_workloads":
		data, err = s.store.AssignedTicketCounts(ctx)
	default:
		return nil, map[string]interface{}{"code": -32601, "message": "tool not found"}
	}

	if err != nil {
		return nil, map[string]interface{}{"code": -32000, "message": err.Error()}
	}

	text, marshalErr := json.MarshalIndent(data, "", "  ")
	if marshalErr != nil {
		return nil, map[string]interface{}{"code": -32000, "message": marshalErr.Error()}
	}

	return map[string]interface{}{
		"content": []interface{}{
			map[string]interface{}{"type": "text", "text": string(text)},
		},
	}, nil
}

func intArg(args map[string]interface{}, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}
