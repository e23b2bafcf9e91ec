package tools

import (
	"encoding/json"
	"sort"
)

// DetectRingsTool finds clusters of accounts linked by shared counterparties
// or devices, the classic fraud-ring signature.
type DetectRingsTool struct {
	Data *Dataset
}

func (t *DetectRingsTool) ToolName() string {
	return "detect_fraud_rings"
}

func (t *DetectRingsTool) ToolDescription() string {
	return "Clusters accounts connected through shared counterparties or devices and returns rings above the minimum size."
}

func (t *DetectRingsTool) ToolPayloadSchema() Schema {
	return Schema{
		Type: TypeObject,
		Properties: PropertyMap{
			"min_size": {
				Type:        TypeInteger,
				Description: "Minimum number of accounts for a cluster to count as a ring (default 3)",
			},
		},
	}
}

func (t *DetectRingsTool) Call(params string) Result {
	var p struct {
		MinSize int `json:"min_size"`
	}
	if err := json.Unmarshal([]byte(params), &p); err != nil {
		return Fail("invalid parameters: " + err.Error())
	}
	if p.MinSize <= 0 {
		p.MinSize = 3
	}

	// Union accounts that touch the same counterparty or device.
	parent := map[string]string{}
	var find func(string) string
	find = func(a string) string {
		if parent[a] == "" || parent[a] == a {
			parent[a] = a
			return a
		}
		root := find(parent[a])
		parent[a] = root
		return root
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	sharedBy := map[string]string{} // counterparty/device -> first account seen
	for _, tx := range t.Data.All() {
		for _, link := range []string{"cp:" + tx.Counterparty, "dev:" + tx.Device} {
			if link == "cp:" || link == "dev:" {
				continue
			}
			if first, ok := sharedBy[link]; ok {
				union(first, tx.Account)
			} else {
				sharedBy[link] = tx.Account
			}
		}
	}

	clusters := map[string][]string{}
	for account := range parent {
		root := find(account)
		clusters[root] = append(clusters[root], account)
	}

	var rings [][]string
	for _, members := range clusters {
		if len(members) >= p.MinSize {
			sort.Strings(members)
			rings = append(rings, members)
		}
	}
	sort.Slice(rings, func(i, j int) bool { return len(rings[i]) > len(rings[j]) })

	return Ok(map[string]any{
		"rings": rings,
		"count": len(rings),
	})
}
