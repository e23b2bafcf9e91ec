package events_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"inquest/events"
)

var _ = Describe("Event wire payloads", func() {
	unmarshal := func(ev events.Event) map[string]any {
		data, err := ev.WireJSON()
		Expect(err).NotTo(HaveOccurred())
		var m map[string]any
		Expect(json.Unmarshal(data, &m)).To(Succeed())
		return m
	}

	It("marshals agent activity without a kind field", func() {
		m := unmarshal(events.AgentActive("detection", "anthropic", events.StatusWorking))
		Expect(m).To(Equal(map[string]any{
			"agent":  "detection",
			"vendor": "anthropic",
			"status": "working",
		}))
	})

	It("carries the phase in the status field for tool calls", func() {
		m := unmarshal(events.ToolCallStart("detection", "find_anomalies", "c1"))
		Expect(m["tool"]).To(Equal("find_anomalies"))
		Expect(m["status"]).To(Equal("start"))
		Expect(m).NotTo(HaveKey("duration"))
	})

	It("includes duration and success on tool call end", func() {
		m := unmarshal(events.ToolCallEnd("detection", "find_anomalies", "c1", 120*time.Millisecond, true))
		Expect(m["status"]).To(Equal("end"))
		Expect(m["duration"]).To(BeNumerically("==", 120))
		Expect(m["success"]).To(BeTrue())
	})

	It("always writes a duration on failed tool calls, even when zero", func() {
		m := unmarshal(events.ToolCallEnd("detection", "risk_score", "c2", 0, false))
		Expect(m).To(HaveKey("duration"))
		Expect(m["success"]).To(BeFalse())
	})

	It("marshals a final text fragment without an agent field", func() {
		m := unmarshal(events.Text("3 anomalies found."))
		Expect(m).To(HaveKeyWithValue("text", "3 anomalies found."))
		Expect(m).NotTo(HaveKey("agent"))
	})

	It("keeps the agent field on thinking fragments", func() {
		m := unmarshal(events.Thinking("investigation", "checking merchant graph"))
		Expect(m).To(HaveKeyWithValue("agent", "investigation"))
		Expect(m).To(HaveKeyWithValue("text", "checking merchant graph"))
	})

	It("marshals done with an optional task id", func() {
		Expect(unmarshal(events.Done("t-1"))).To(HaveKeyWithValue("taskId", "t-1"))
		Expect(unmarshal(events.Done(""))).To(BeEmpty())
	})
})

var _ = Describe("Bus", func() {
	It("delivers events to a subscriber in publish order", func() {
		bus := events.NewBus()
		ch := bus.Subscribe()

		bus.Publish(events.AgentActive("detection", "anthropic", events.StatusWorking))
		bus.Publish(events.Thinking("detection", "first"))
		bus.Publish(events.Done("t-1"))
		bus.Close()

		var kinds []events.Kind
		for ev := range ch {
			kinds = append(kinds, ev.Kind)
		}
		Expect(kinds).To(Equal([]events.Kind{
			events.KindAgentActive,
			events.KindThinking,
			events.KindDone,
		}))
	})

	It("fans out to multiple subscribers", func() {
		bus := events.NewBus()
		a := bus.Subscribe()
		b := bus.Subscribe()

		bus.Publish(events.Text("hello"))
		bus.Close()

		Expect((<-a).Text).To(Equal("hello"))
		Expect((<-b).Text).To(Equal("hello"))
	})

	It("ignores publishes after close", func() {
		bus := events.NewBus()
		ch := bus.Subscribe()
		bus.Close()

		bus.Publish(events.Text("late"))

		_, open := <-ch
		Expect(open).To(BeFalse())
	})

	It("returns a closed channel when subscribing after close", func() {
		bus := events.NewBus()
		bus.Close()
		_, open := <-bus.Subscribe()
		Expect(open).To(BeFalse())
	})
})
