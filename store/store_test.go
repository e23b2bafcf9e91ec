package store_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"inquest/store"
)

var _ = Describe("Bundle", func() {
	runBundleTests := func(newBundle func() (*store.Bundle, func())) {
		var (
			bundle  *store.Bundle
			cleanup func()
		)

		BeforeEach(func() {
			bundle, cleanup = newBundle()
		})

		AfterEach(func() {
			cleanup()
		})

		It("archives an investigation through its lifecycle", func() {
			Expect(bundle.Investigations.CreateInvestigation("task-1", "ctx-1", "look into acct-9")).To(Succeed())

			inv, err := bundle.Investigations.GetInvestigation("task-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.State).To(Equal("working"))
			Expect(inv.Request).To(Equal("look into acct-9"))
			Expect(inv.FinishedAt).To(BeNil())

			Expect(bundle.Investigations.CompleteInvestigation("task-1", "completed", "nothing suspicious")).To(Succeed())

			inv, err = bundle.Investigations.GetInvestigation("task-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.State).To(Equal("completed"))
			Expect(inv.Result).To(Equal("nothing suspicious"))
			Expect(inv.FinishedAt).NotTo(BeNil())
		})

		It("returns ErrNotFound for unknown investigations", func() {
			_, err := bundle.Investigations.GetInvestigation("missing")
			Expect(err).To(MatchError(store.ErrNotFound))

			err = bundle.Investigations.CompleteInvestigation("missing", "completed", "")
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("lists investigations newest first with pagination", func() {
			for _, id := range []string{"t-a", "t-b", "t-c"} {
				Expect(bundle.Investigations.CreateInvestigation(id, "", "request")).To(Succeed())
				time.Sleep(5 * time.Millisecond)
			}

			all, err := bundle.Investigations.ListInvestigations(10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].ID).To(Equal("t-c"))

			page, err := bundle.Investigations.ListInvestigations(2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(1))
			Expect(page[0].ID).To(Equal("t-a"))
		})

		It("archives a task's event stream in relay order", func() {
			frames := []string{
				`{"agent":"detection","vendor":"anthropic","status":"working"}`,
				`{"agent":"detection","tool":"find_anomalies","status":"start"}`,
				`{"text":"3 anomalies found."}`,
			}
			kinds := []string{"agent_active", "tool_call", "text"}
			for i, data := range frames {
				Expect(bundle.Events.StoreEvent(store.TaskEvent{
					ID:       "evt-" + kinds[i],
					TaskID:   "task-1",
					Kind:     kinds[i],
					DataJSON: data,
				})).To(Succeed())
			}

			evs, err := bundle.Events.GetEventsByTask("task-1", 100, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(evs).To(HaveLen(3))
			for i := range evs {
				Expect(evs[i].Kind).To(Equal(kinds[i]))
				Expect(evs[i].DataJSON).To(Equal(frames[i]))
			}
		})

		It("returns empty slices when nothing matches", func() {
			evs, err := bundle.Events.GetEventsByTask("nonexistent", 100, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(evs).To(BeEmpty())

			all, err := bundle.Investigations.ListInvestigations(10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})
	}

	Context("Memory backend", func() {
		runBundleTests(func() (*store.Bundle, func()) {
			return store.NewMemoryBundle(), func() {}
		})
	})

	Context("SQLite backend", func() {
		runBundleTests(func() (*store.Bundle, func()) {
			dir, err := os.MkdirTemp("", "store-test-*")
			Expect(err).NotTo(HaveOccurred())

			dbPath := filepath.Join(dir, "test.db")
			bundle, err := store.NewSQLiteBundle(dbPath)
			Expect(err).NotTo(HaveOccurred())

			return bundle, func() {
				bundle.Close()
				os.RemoveAll(dir)
			}
		})
	})
})
