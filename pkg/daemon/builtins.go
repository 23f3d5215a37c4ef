package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aegislabs/aegis/pkg/tools"
	"github.com/aegislabs/aegis/pkg/types"
)

const fetchBodyLimit = 1 << 20 // 1 MiB

// registerBuiltinTools installs the tools every daemon ships with. External
// collaborators (messaging, payments) are gated on configured credentials;
// without them the tool reports failure instead of being hidden, so the
// governance and audit path stays observable.
func (d *Daemon) registerBuiltinTools() error {
	builtins := []*tools.Tool{
		{
			Name:        "memory_query",
			Description: "Search stored memory by namespace and substring",
			Category:    "memory",
			RiskLevel:   types.RiskLow,
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"namespace", "query"},
				"properties": map[string]any{
					"namespace": map[string]any{"type": "string", "minLength": 1},
					"query":     map[string]any{"type": "string"},
					"limit":     map[string]any{"type": "integer", "minimum": 1, "maximum": 100},
				},
			},
			Execute: d.execMemoryQuery,
		},
		{
			Name:        "http_fetch",
			Description: "Fetch a URL and return the response body",
			Category:    "network",
			RiskLevel:   types.RiskMedium,
			TargetField: "url",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"url"},
				"properties": map[string]any{
					"url": map[string]any{"type": "string", "pattern": "^https?://"},
				},
			},
			Execute: d.execHTTPFetch,
		},
		{
			Name:        "audit_query",
			Description: "Read recent audit ledger entries",
			Category:    "audit",
			RiskLevel:   types.RiskLow,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"actor": map[string]any{"type": "string"},
					"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": 500},
				},
			},
			Execute: d.execAuditQuery,
		},
		{
			Name:        "bus_send",
			Description: "Send a message to another actor's mailbox",
			Category:    "bus",
			RiskLevel:   types.RiskLow,
			TargetField: "to",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"from", "to"},
				"properties": map[string]any{
					"from":        map[string]any{"type": "string", "minLength": 1},
					"to":          map[string]any{"type": "string", "minLength": 1},
					"payload":     map[string]any{"type": "object"},
					"ttl_seconds": map[string]any{"type": "integer", "minimum": 1},
				},
			},
			Execute: d.execBusSend,
		},
		{
			Name:        "message_send",
			Description: "Send an outbound message through the messaging collaborator",
			Category:    "outreach",
			RiskLevel:   types.RiskMedium,
			TargetField: "recipient",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"recipient", "text"},
				"properties": map[string]any{
					"recipient": map[string]any{"type": "string", "minLength": 1},
					"text":      map[string]any{"type": "string", "minLength": 1},
				},
			},
			Execute: d.execMessageSend,
		},
		{
			Name:             "payment_transfer",
			Description:      "Submit a payment through the payments collaborator",
			Category:         "finance",
			RiskLevel:        types.RiskCritical,
			RequiresApproval: true,
			TargetField:      "recipient",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"recipient", "amount", "currency"},
				"properties": map[string]any{
					"recipient": map[string]any{"type": "string", "minLength": 1},
					"amount":    map[string]any{"type": "number", "exclusiveMinimum": 0},
					"currency":  map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
				},
			},
			Execute: d.execPaymentTransfer,
		},
	}

	for _, tool := range builtins {
		if err := d.registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func (d *Daemon) execMemoryQuery(ctx context.Context, input map[string]any) (*types.ToolResult, error) {
	namespace, _ := input["namespace"].(string)
	query, _ := input["query"].(string)
	limit := intArg(input, "limit", 10)

	entries, err := d.memory.Recall(namespace, query, limit)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return &types.ToolResult{Success: true, Data: map[string]any{"entries": json.RawMessage(out)}}, nil
}

func (d *Daemon) execHTTPFetch(ctx context.Context, input map[string]any) (*types.ToolResult, error) {
	url, _ := input["url"].(string)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchBodyLimit))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return &types.ToolResult{
			Success: false,
			Error:   fmt.Sprintf("http %d from %s", resp.StatusCode, url),
		}, nil
	}
	return &types.ToolResult{
		Success: true,
		Data:    map[string]any{"body": string(body), "status": resp.StatusCode},
	}, nil
}

func (d *Daemon) execAuditQuery(ctx context.Context, input map[string]any) (*types.ToolResult, error) {
	limit := intArg(input, "limit", 20)

	var entries []*types.AuditEntry
	var err error
	if actor, ok := input["actor"].(string); ok && actor != "" {
		entries, err = d.ledger.ByActor(actor, limit)
	} else {
		entries, err = d.ledger.Recent(limit)
	}
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return &types.ToolResult{Success: true, Data: map[string]any{"entries": json.RawMessage(out)}}, nil
}

func (d *Daemon) execBusSend(ctx context.Context, input map[string]any) (*types.ToolResult, error) {
	from, _ := input["from"].(string)
	to, _ := input["to"].(string)
	payload, _ := input["payload"].(map[string]any)

	ttl := 24 * time.Hour
	if secs := intArg(input, "ttl_seconds", 0); secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	msg := d.bus.Send(from, to, payload, ttl)
	return &types.ToolResult{Success: true, Data: map[string]any{"message_id": msg.ID}}, nil
}

func (d *Daemon) execMessageSend(ctx context.Context, input map[string]any) (*types.ToolResult, error) {
	if d.cfg.MessagingToken == "" {
		return &types.ToolResult{Success: false, Error: "messaging collaborator not configured"}, nil
	}
	recipient, _ := input["recipient"].(string)
	text, _ := input["text"].(string)

	// The core hands outbound messages to the herald's mailbox; the transport
	// adapter drains it and delivers through the messaging provider.
	msg := d.bus.Send(string(types.RoleHerald), "outbox", map[string]any{
		"recipient": recipient,
		"text":      text,
	}, 24*time.Hour)
	return &types.ToolResult{Success: true, Data: map[string]any{"message_id": msg.ID}}, nil
}

func (d *Daemon) execPaymentTransfer(ctx context.Context, input map[string]any) (*types.ToolResult, error) {
	if d.cfg.PaymentsKey == "" {
		return &types.ToolResult{Success: false, Error: "payments collaborator not configured"}, nil
	}
	recipient, _ := input["recipient"].(string)
	amount, _ := input["amount"].(float64)
	currency, _ := input["currency"].(string)

	msg := d.bus.Send(string(types.RoleTreasurer), "settlement", map[string]any{
		"recipient": recipient,
		"amount":    amount,
		"currency":  currency,
	}, 24*time.Hour)
	return &types.ToolResult{
		Success: true,
		Data: map[string]any{
			"message_id": msg.ID,
			"status":     "queued for settlement",
		},
	}, nil
}

func intArg(input map[string]any, key string, def int) int {
	switch v := input[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}
