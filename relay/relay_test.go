package relay_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"inquest/agent"
	"inquest/events"
	"inquest/llm"
	"inquest/relay"
	"inquest/store"
	"inquest/tools"
)

// scriptedReasoner replays canned replies, then repeats the last one.
type scriptedReasoner struct {
	replies []*llm.ChatResponse
}

func (r *scriptedReasoner) next() (*llm.ChatResponse, error) {
	resp := r.replies[0]
	if len(r.replies) > 1 {
		r.replies = r.replies[1:]
	}
	return resp, nil
}

func (r *scriptedReasoner) Send(context.Context, string) (*llm.ChatResponse, error) {
	return r.next()
}

func (r *scriptedReasoner) SendToolResults(context.Context, []llm.ToolResult) (*llm.ChatResponse, error) {
	return r.next()
}

type okInvoker struct{}

func (okInvoker) Call(context.Context, string, map[string]any) tools.Result {
	return tools.Ok(map[string]any{"count": 3})
}

type frame struct {
	event string
	data  string
}

func parseFrames(body string) []frame {
	var out []frame
	for _, chunk := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		var f frame
		for _, line := range strings.Split(chunk, "\n") {
			if rest, ok := strings.CutPrefix(line, "event: "); ok {
				f.event = rest
			}
			if rest, ok := strings.CutPrefix(line, "data: "); ok {
				f.data = rest
			}
		}
		out = append(out, f)
	}
	return out
}

var _ = Describe("Server", func() {
	var (
		stores *store.Bundle
		srv    *httptest.Server
	)

	newServer := func(replies []*llm.ChatResponse) {
		executor := agent.NewExecutor(agent.Options{
			Role:        "detection",
			Vendor:      "anthropic",
			NewReasoner: func() agent.Reasoner { return &scriptedReasoner{replies: replies} },
			Invoker:     okInvoker{},
		})
		stores = store.NewMemoryBundle()
		srv = httptest.NewServer(relay.NewServer(executor, agent.NewRegistry(), stores, "test", nil))
		DeferCleanup(srv.Close)
	}

	startInvestigation := func(request string) string {
		body, _ := json.Marshal(map[string]string{"request": request})
		resp, err := http.Post(srv.URL+"/api/investigations", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var created struct {
			TaskID string `json:"task_id"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&created)).To(Succeed())
		Expect(created.TaskID).NotTo(BeEmpty())
		return created.TaskID
	}

	readStream := func(taskID string) []frame {
		resp, err := http.Get(fmt.Sprintf("%s/api/investigations/%s/stream", srv.URL, taskID))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return parseFrames(string(raw))
	}

	It("streams an investigation end to end", func() {
		newServer([]*llm.ChatResponse{
			{Content: "checking", ToolCalls: []llm.ToolCall{{ID: "c1", Name: "find_anomalies", Args: map[string]any{}}}},
			{Content: "3 anomalies found."},
		})
		taskID := startInvestigation("look at acct-1")
		frames := readStream(taskID)

		kinds := make([]string, len(frames))
		for i, f := range frames {
			kinds[i] = f.event
		}
		Expect(kinds).To(Equal([]string{
			"connected",
			string(events.KindAgentActive),
			string(events.KindThinking),
			string(events.KindToolCall),
			string(events.KindToolCall),
			string(events.KindAgentActive),
			string(events.KindText),
			string(events.KindDone),
		}))

		// Payloads carry the legacy shape: no kind field inside the JSON.
		var toolStart map[string]any
		Expect(json.Unmarshal([]byte(frames[3].data), &toolStart)).To(Succeed())
		Expect(toolStart).NotTo(HaveKey("kind"))
		Expect(toolStart["tool"]).To(Equal("find_anomalies"))
		Expect(toolStart["status"]).To(Equal("start"))

		var text map[string]any
		Expect(json.Unmarshal([]byte(frames[6].data), &text)).To(Succeed())
		Expect(text["text"]).To(Equal("3 anomalies found."))
	})

	It("archives the investigation and its events", func() {
		newServer([]*llm.ChatResponse{{Content: "all clear"}})
		taskID := startInvestigation("routine sweep")
		readStream(taskID)

		inv, err := stores.Investigations.GetInvestigation(taskID)
		Expect(err).NotTo(HaveOccurred())
		Expect(inv.State).To(Equal("completed"))
		Expect(inv.Result).To(Equal("all clear"))
		Expect(inv.FinishedAt).NotTo(BeNil())

		evs, err := stores.Events.GetEventsByTask(taskID, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(evs).To(HaveLen(4)) // working, completed, text, done
		Expect(evs[len(evs)-1].Kind).To(Equal("done"))
	})

	It("replays a finished investigation's archive on a late stream connect", func() {
		newServer([]*llm.ChatResponse{{Content: "all clear"}})
		taskID := startInvestigation("routine sweep")

		first := readStream(taskID)
		second := readStream(taskID)
		Expect(second).To(Equal(first))
	})

	It("rejects an empty request body", func() {
		newServer([]*llm.ChatResponse{{Content: "unused"}})
		body := bytes.NewReader([]byte(`{"request":"  "}`))
		resp, err := http.Post(srv.URL+"/api/investigations", "application/json", body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("accepts cancellation for unknown task ids", func() {
		newServer([]*llm.ChatResponse{{Content: "unused"}})
		resp, err := http.Post(srv.URL+"/api/investigations/nope/cancel", "application/json", nil)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
	})

	It("reports health", func() {
		newServer([]*llm.ChatResponse{{Content: "unused"}})
		resp, err := http.Get(srv.URL + "/api/health")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var health map[string]string
		Expect(json.NewDecoder(resp.Body).Decode(&health)).To(Succeed())
		Expect(health["status"]).To(Equal("ok"))
		Expect(health["service"]).To(Equal("inquest"))
	})
})

var _ = Describe("Broker", func() {
	It("delivers events in publish order", func() {
		b := relay.NewBroker(nil)
		ch := b.GetOrCreateChannel("t1")

		b.Publish("t1", events.Text("one"))
		b.Publish("t1", events.Text("two"))
		b.CloseChannel("t1")

		var got []string
		for ev := range ch {
			got = append(got, ev.Text)
		}
		Expect(got).To(Equal([]string{"one", "two"}))
	})

	It("drops the oldest event when the channel is full", func() {
		b := relay.NewBroker(nil)
		ch := b.GetOrCreateChannel("t1")

		for i := 0; i < 300; i++ {
			b.Publish("t1", events.Text(fmt.Sprintf("msg-%d", i)))
		}
		b.CloseChannel("t1")

		var got []events.Event
		for ev := range ch {
			got = append(got, ev)
		}
		Expect(got).To(HaveLen(256))
		// The earliest messages were sacrificed, the latest survived.
		Expect(got[len(got)-1].Text).To(Equal("msg-299"))
		Expect(got[0].Text).NotTo(Equal("msg-0"))
	})

	It("ignores publishes for unknown tasks", func() {
		b := relay.NewBroker(nil)
		b.Publish("ghost", events.Text("nobody home"))
	})
})
