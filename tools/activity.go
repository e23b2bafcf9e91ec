package tools

import (
	"encoding/json"
	"fmt"
)

// AccountActivityTool returns the recent transactions for an account so the
// model can inspect raw records.
type AccountActivityTool struct {
	Data *Dataset
}

func (t *AccountActivityTool) ToolName() string {
	return "account_activity"
}

func (t *AccountActivityTool) ToolDescription() string {
	return "Returns the most recent transactions for an account, newest first."
}

func (t *AccountActivityTool) ToolPayloadSchema() Schema {
	return Schema{
		Type: TypeObject,
		Properties: PropertyMap{
			"account": {
				Type:        TypeString,
				Description: "The account ID to look up",
			},
			"limit": {
				Type:        TypeInteger,
				Description: "Maximum number of transactions to return (default 25)",
			},
		},
		Required: []string{"account"},
	}
}

func (t *AccountActivityTool) Call(params string) Result {
	var p struct {
		Account string `json:"account"`
		Limit   int    `json:"limit"`
	}
	if err := json.Unmarshal([]byte(params), &p); err != nil {
		return Fail("invalid parameters: " + err.Error())
	}
	if p.Account == "" {
		return Fail("account is required")
	}
	if p.Limit <= 0 {
		p.Limit = 25
	}

	txs := t.Data.ByAccount(p.Account)
	if len(txs) == 0 {
		return Fail(fmt.Sprintf("no transactions found for account %q", p.Account))
	}

	// Newest first.
	if len(txs) > p.Limit {
		txs = txs[len(txs)-p.Limit:]
	}
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}

	return Ok(map[string]any{
		"account":      p.Account,
		"transactions": txs,
	})
}
