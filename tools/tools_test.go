package tools_test

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"inquest/tools"
)

var _ = Describe("FindAnomaliesTool", func() {
	var tool *tools.FindAnomaliesTool

	BeforeEach(func() {
		tool = &tools.FindAnomaliesTool{
			Data:  fixtureDataset(),
			Cache: tools.NewBenchmarkCache(time.Minute),
		}
	})

	It("flags the spike transaction", func() {
		res := tool.Call(`{"account":"acct-1"}`)
		Expect(res.Success).To(BeTrue())

		data := res.Data.(map[string]any)
		Expect(data["count"]).To(BeNumerically(">=", 1))
	})

	It("fails for an unknown account", func() {
		res := tool.Call(`{"account":"nope"}`)
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(ContainSubstring("no transactions"))
	})

	It("fails on malformed parameters", func() {
		res := tool.Call(`{not json`)
		Expect(res.Success).To(BeFalse())
	})
})

var _ = Describe("DetectRingsTool", func() {
	It("clusters accounts sharing a device", func() {
		tool := &tools.DetectRingsTool{Data: fixtureDataset()}

		res := tool.Call(`{"min_size":3}`)
		Expect(res.Success).To(BeTrue())

		data := res.Data.(map[string]any)
		rings := data["rings"].([][]string)
		Expect(rings).To(HaveLen(1))
		Expect(rings[0]).To(Equal([]string{"acct-2", "acct-3", "acct-4"}))
	})
})

var _ = Describe("AuditLog", func() {
	It("keeps only the newest entries once capacity is reached", func() {
		log := tools.NewAuditLog(3)
		for i := 0; i < 5; i++ {
			log.Record(tools.AuditEntry{Tool: string(rune('a' + i))})
		}

		Expect(log.Len()).To(Equal(3))
		recent := log.Recent(3)
		Expect(recent[0].Tool).To(Equal("e"))
		Expect(recent[2].Tool).To(Equal("c"))
	})

	It("returns fewer entries than requested when not full", func() {
		log := tools.NewAuditLog(10)
		log.Record(tools.AuditEntry{Tool: "only"})
		Expect(log.Recent(5)).To(HaveLen(1))
	})
})

type panickyTool struct{}

func (panickyTool) ToolName() string               { return "panicky" }
func (panickyTool) ToolDescription() string        { return "always panics" }
func (panickyTool) ToolPayloadSchema() tools.Schema { return tools.Schema{Type: tools.TypeObject} }
func (panickyTool) Call(string) tools.Result       { panic("boom") }

var _ = Describe("Invoker", func() {
	var (
		audit   *tools.AuditLog
		invoker *tools.Invoker
	)

	BeforeEach(func() {
		audit = tools.NewAuditLog(16)
		invoker = tools.NewInvoker(audit, hclog.NewNullLogger())
		invoker.Register(&tools.AccountActivityTool{Data: fixtureDataset()})
		invoker.Register(panickyTool{})
	})

	It("executes a registered tool and records an audit entry", func() {
		res := invoker.Call(context.Background(), "account_activity", map[string]any{"account": "acct-1"})
		Expect(res.Success).To(BeTrue())
		Expect(audit.Len()).To(Equal(1))
		Expect(audit.Recent(1)[0].Tool).To(Equal("account_activity"))
	})

	It("converts a panic into a failed result", func() {
		res := invoker.Call(context.Background(), "panicky", nil)
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(ContainSubstring("panicked"))
	})

	It("fails for an unknown tool without recording it", func() {
		res := invoker.Call(context.Background(), "missing", nil)
		Expect(res.Success).To(BeFalse())
		Expect(audit.Len()).To(BeZero())
	})

	It("lists tools sorted by name", func() {
		infos := invoker.List()
		Expect(infos).To(HaveLen(2))
		Expect(infos[0].Name).To(Equal("account_activity"))
		Expect(infos[1].Name).To(Equal("panicky"))
	})

	It("abandons the call when the context is already cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res := invoker.Call(ctx, "account_activity", map[string]any{"account": "acct-1"})
		// The tool may win the race, but a cancelled result must be an error.
		if !res.Success {
			Expect(res.Error).To(ContainSubstring("cancelled"))
		}
	})
})
