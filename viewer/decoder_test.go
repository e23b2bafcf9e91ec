package viewer_test

import (
	"math/rand"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"inquest/viewer"
)

// feedAll pushes the whole stream in one chunk.
func feedAll(d *viewer.Decoder, stream string) {
	d.Feed([]byte(stream))
}

func frames(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

var _ = Describe("Decoder", func() {
	var decoder *viewer.Decoder

	BeforeEach(func() {
		decoder = viewer.NewDecoder(nil)
	})

	It("reconstructs the reference investigation", func() {
		stream := frames(
			`{"agent":"detection","vendor":"anthropic","status":"working"}`,
			`{"tool":"find_anomalies","agent":"detection","status":"start"}`,
			`{"tool":"find_anomalies","agent":"detection","status":"end","duration":120,"success":true}`,
			`{"text":"3 anomalies found."}`,
			`{}`,
		)
		feedAll(decoder, stream)
		v := decoder.View()

		Expect(v.FinalText()).To(Equal("3 anomalies found."))
		Expect(v.Agents["detection"]).To(Equal(viewer.AgentInfo{Vendor: "anthropic", Status: "working"}))
		Expect(v.Messages).To(HaveLen(1))
		// Done cleared the transient tool-call list after the turn.
		Expect(v.ToolCalls).To(BeEmpty())
	})

	It("completes a tool call record before Done clears it", func() {
		feedAll(decoder, frames(
			`{"tool":"risk_score","agent":"detection","status":"start"}`,
			`{"tool":"risk_score","agent":"detection","status":"end","duration":45,"success":false}`,
		))
		v := decoder.View()
		Expect(v.ToolCalls).To(HaveLen(1))
		Expect(v.ToolCalls[0].Status).To(Equal(viewer.ToolError))
		Expect(v.ToolCalls[0].DurationMs).To(Equal(int64(45)))
	})

	It("yields identical state regardless of byte chunking", func() {
		stream := frames(
			"event: agent_active",
			`data: {"agent":"detection","vendor":"anthropic","status":"working"}`,
			"",
			"event: tool_call",
			`data: {"tool":"find_anomalies","agent":"detection","status":"start","callId":"c-1"}`,
			"",
			"event: tool_call",
			`data: {"tool":"find_anomalies","agent":"detection","status":"end","callId":"c-1","duration":80,"success":true}`,
			"",
			"event: delegation",
			`data: {"from":"detection","to":"investigation"}`,
			"",
			"event: thinking",
			`data: {"agent":"investigation","text":"tracing devices"}`,
			"",
			"event: text",
			`data: {"text":"ring of 3 accounts"}`,
			"",
			"event: text",
			`data: {"text":" confirmed."}`,
			"",
			"event: done",
			`data: {"taskId":"t-1"}`,
			"",
		)

		decodeChunked := func(sizes func() int) *viewer.View {
			d := viewer.NewDecoder(nil)
			rest := []byte(stream)
			for len(rest) > 0 {
				n := sizes()
				if n > len(rest) {
					n = len(rest)
				}
				d.Feed(rest[:n])
				rest = rest[n:]
			}
			return d.View()
		}

		whole := decodeChunked(func() int { return len(stream) })
		byByte := decodeChunked(func() int { return 1 })
		rng := rand.New(rand.NewSource(7))
		random := decodeChunked(func() int { return 1 + rng.Intn(17) })

		for _, v := range []*viewer.View{byByte, random} {
			Expect(v.Messages).To(Equal(whole.Messages))
			Expect(v.Agents).To(Equal(whole.Agents))
			Expect(v.Delegations).To(HaveLen(len(whole.Delegations)))
			Expect(v.Errors).To(Equal(whole.Errors))
		}
		Expect(whole.FinalText()).To(Equal("ring of 3 accounts confirmed."))
	})

	It("disambiguates concurrent duplicate tool calls by call id", func() {
		feedAll(decoder, frames(
			`{"tool":"find_anomalies","agent":"detection","status":"start","callId":"a"}`,
			`{"tool":"find_anomalies","agent":"detection","status":"start","callId":"b"}`,
			`{"tool":"find_anomalies","agent":"detection","status":"end","callId":"b","duration":10,"success":false}`,
			`{"tool":"find_anomalies","agent":"detection","status":"end","callId":"a","duration":90,"success":true}`,
		))
		v := decoder.View()
		Expect(v.ToolCalls).To(HaveLen(2))
		Expect(v.ToolCalls[0].ID).To(Equal("a"))
		Expect(v.ToolCalls[0].Status).To(Equal(viewer.ToolSuccess))
		Expect(v.ToolCalls[0].DurationMs).To(Equal(int64(90)))
		Expect(v.ToolCalls[1].ID).To(Equal("b"))
		Expect(v.ToolCalls[1].Status).To(Equal(viewer.ToolError))
	})

	It("marks the delegate working as soon as a delegation appears", func() {
		feedAll(decoder, frames(`{"from":"detection","to":"investigation"}`))
		v := decoder.View()
		Expect(v.Agents["investigation"].Status).To(Equal("working"))
		Expect(v.Delegations).To(HaveLen(1))
		Expect(v.DelegationActive()).To(BeTrue())
	})

	It("separates thinking from answer text by agent presence", func() {
		feedAll(decoder, frames(
			`{"agent":"detection","text":"considering the burst pattern"}`,
			`{"text":"Verdict: "}`,
			`{"text":"fraud ring."}`,
		))
		v := decoder.View()
		Expect(v.Thinking).To(HaveLen(1))
		Expect(v.Thinking[0].Agent).To(Equal("detection"))
		Expect(v.PendingText()).To(Equal("Verdict: fraud ring."))
		Expect(v.Messages).To(BeEmpty())
	})

	It("surfaces errors without crashing on noise", func() {
		feedAll(decoder, frames(
			"this is not json at all",
			`{"unknown_field":true}`,
			`{"message":"backend unreachable"}`,
		))
		v := decoder.View()
		Expect(v.Errors).To(Equal([]string{"backend unreachable"}))
	})

	It("keeps agent statuses across Done but resets them on Reset", func() {
		feedAll(decoder, frames(
			`{"agent":"detection","vendor":"anthropic","status":"completed"}`,
			`{"text":"done deal"}`,
			`{}`,
		))
		v := decoder.View()
		Expect(v.Agents["detection"].Status).To(Equal("completed"))
		Expect(v.FinalText()).To(Equal("done deal"))

		decoder.Reset()
		Expect(v.Agents["detection"].Status).To(Equal("idle"))
		Expect(v.Agents["detection"].Vendor).To(Equal("anthropic"))
	})

	It("never classifies an agent activity frame as a tool call", func() {
		// "status" exists on both shapes; the tool field decides.
		feedAll(decoder, frames(
			`{"agent":"detection","vendor":"anthropic","status":"working"}`,
			`{"tool":"risk_score","agent":"detection","status":"start"}`,
		))
		v := decoder.View()
		Expect(v.Agents["detection"].Status).To(Equal("working"))
		Expect(v.ToolCalls).To(HaveLen(1))
	})

	It("ignores the relay's connected preamble", func() {
		feedAll(decoder, frames(
			"event: connected",
			`data: {"task_id":"t-1"}`,
			"",
			"event: text",
			`data: {"text":"hello"}`,
			"",
		))
		v := decoder.View()
		Expect(v.Messages).To(BeEmpty())
		Expect(v.PendingText()).To(Equal("hello"))
	})
})
