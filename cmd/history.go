package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"inquest/store"
)

var historyServer string
var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past investigations",
	Long:  `List the investigations archived by a running detection agent, newest first.`,
	Run: func(cmd *cobra.Command, args []string) {
		url := fmt.Sprintf("%s/api/investigations?limit=%d", historyServer, historyLimit)
		resp, err := http.Get(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: server returned %s\n", resp.Status)
			os.Exit(1)
		}

		var payload struct {
			Investigations []store.Investigation `json:"investigations"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		investigations := payload.Investigations

		if len(investigations) == 0 {
			fmt.Println("No investigations yet")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tCREATED\tREQUEST")
		for _, inv := range investigations {
			request := inv.Request
			if len(request) > 60 {
				request = request[:57] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", inv.ID, inv.State, inv.CreatedAt.Format("2006-01-02 15:04:05"), request)
		}
		w.Flush()
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyServer, "server", "s", "http://localhost:8320", "Detection agent base URL")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of investigations to list")
	rootCmd.AddCommand(historyCmd)
}
