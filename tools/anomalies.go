package tools

import (
	"encoding/json"
	"fmt"
)

// zScoreThreshold marks a transaction anomalous when its amount deviates
// from the account benchmark by more than this many standard deviations.
const zScoreThreshold = 3.0

// FindAnomaliesTool flags transactions whose amounts deviate sharply from
// the account's spending benchmark.
type FindAnomaliesTool struct {
	Data  *Dataset
	Cache *BenchmarkCache
}

func (t *FindAnomaliesTool) ToolName() string {
	return "find_anomalies"
}

func (t *FindAnomaliesTool) ToolDescription() string {
	return "Finds anomalous transactions for an account by comparing each amount against the account's statistical spending benchmark."
}

func (t *FindAnomaliesTool) ToolPayloadSchema() Schema {
	return Schema{
		Type: TypeObject,
		Properties: PropertyMap{
			"account": {
				Type:        TypeString,
				Description: "The account ID to analyze",
			},
			"limit": {
				Type:        TypeInteger,
				Description: "Maximum number of anomalies to return (default 20)",
			},
		},
		Required: []string{"account"},
	}
}

type anomaly struct {
	Transaction Transaction `json:"transaction"`
	ZScore      float64     `json:"zScore"`
}

func (t *FindAnomaliesTool) Call(params string) Result {
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
		p.Limit = 20
	}

	txs := t.Data.ByAccount(p.Account)
	if len(txs) == 0 {
		return Fail(fmt.Sprintf("no transactions found for account %q", p.Account))
	}

	benchmark := t.Cache.GetOrCompute("account:"+p.Account, func() Benchmark {
		return amountStats(txs)
	})

	var anomalies []anomaly
	for _, tx := range txs {
		if benchmark.StdDev == 0 {
			continue
		}
		z := (tx.Amount - benchmark.Mean) / benchmark.StdDev
		if z > zScoreThreshold || z < -zScoreThreshold {
			anomalies = append(anomalies, anomaly{Transaction: tx, ZScore: z})
		}
		if len(anomalies) == p.Limit {
			break
		}
	}

	return Ok(map[string]any{
		"account":   p.Account,
		"benchmark": benchmark,
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}
