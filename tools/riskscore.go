package tools

import (
	"encoding/json"
	"fmt"
	"time"
)

// RiskScoreTool computes a 0-100 risk score for an account from its recent
// activity: anomaly density, burst velocity and cross-border exposure.
type RiskScoreTool struct {
	Data  *Dataset
	Cache *BenchmarkCache
}

func (t *RiskScoreTool) ToolName() string {
	return "risk_score"
}

func (t *RiskScoreTool) ToolDescription() string {
	return "Computes a composite fraud risk score (0-100) for an account, with a breakdown of the contributing factors."
}

func (t *RiskScoreTool) ToolPayloadSchema() Schema {
	return Schema{
		Type: TypeObject,
		Properties: PropertyMap{
			"account": {
				Type:        TypeString,
				Description: "The account ID to score",
			},
		},
		Required: []string{"account"},
	}
}

func (t *RiskScoreTool) Call(params string) Result {
	var p struct {
		Account string `json:"account"`
	}
	if err := json.Unmarshal([]byte(params), &p); err != nil {
		return Fail("invalid parameters: " + err.Error())
	}
	if p.Account == "" {
		return Fail("account is required")
	}

	txs := t.Data.ByAccount(p.Account)
	if len(txs) == 0 {
		return Fail(fmt.Sprintf("no transactions found for account %q", p.Account))
	}

	benchmark := t.Cache.GetOrCompute("account:"+p.Account, func() Benchmark {
		return amountStats(txs)
	})

	// Anomaly density: share of transactions beyond the z-score threshold.
	var anomalous int
	for _, tx := range txs {
		if benchmark.StdDev == 0 {
			break
		}
		z := (tx.Amount - benchmark.Mean) / benchmark.StdDev
		if z > zScoreThreshold || z < -zScoreThreshold {
			anomalous++
		}
	}
	anomalyFactor := float64(anomalous) / float64(len(txs))

	// Velocity: transactions within any rolling hour, normalized to [0,1].
	velocityFactor := burstVelocity(txs)

	// Exposure: fraction of distinct foreign countries, capped.
	countries := map[string]bool{}
	for _, tx := range txs {
		if tx.Country != "" {
			countries[tx.Country] = true
		}
	}
	exposureFactor := float64(len(countries)) / 10.0
	if exposureFactor > 1 {
		exposureFactor = 1
	}

	score := 100 * (0.5*anomalyFactor + 0.3*velocityFactor + 0.2*exposureFactor)

	return Ok(map[string]any{
		"account": p.Account,
		"score":   score,
		"factors": map[string]float64{
			"anomalyDensity":      anomalyFactor,
			"burstVelocity":       velocityFactor,
			"crossBorderExposure": exposureFactor,
		},
		"transactions": len(txs),
	})
}

// burstVelocity returns the largest number of transactions inside any
// one-hour window, scaled so that 20 or more maps to 1.0. Transactions are
// assumed oldest-first.
func burstVelocity(txs []Transaction) float64 {
	var maxBurst int
	for i := range txs {
		count := 1
		for j := i + 1; j < len(txs); j++ {
			if txs[j].Timestamp.Sub(txs[i].Timestamp) > time.Hour {
				break
			}
			count++
		}
		if count > maxBurst {
			maxBurst = count
		}
	}
	v := float64(maxBurst) / 20.0
	if v > 1 {
		v = 1
	}
	return v
}
