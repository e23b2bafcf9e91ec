package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"inquest/streamers/cli"
	"inquest/viewer"
)

var investigateServer string
var investigateContext string

var investigateCmd = &cobra.Command{
	Use:   "investigate [request]",
	Short: "Submit an investigation request and watch it unfold",
	Long: `Submit a request to a running detection agent and follow its progress
live: agent status, tool calls, delegation to the investigation agent,
reasoning, and the final report rendered as markdown.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		request := strings.Join(args, " ")

		taskID, err := submitInvestigation(investigateServer, request, investigateContext)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%sInvestigation %s started%s\n", cli.ColorGray, taskID, cli.ColorReset)

		if err := followInvestigation(investigateServer, taskID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func submitInvestigation(server, request, contextID string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"request":    request,
		"context_id": contextID,
	})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(server+"/api/investigations", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("submit request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var created struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return created.TaskID, nil
}

func followInvestigation(server, taskID string) error {
	resp, err := http.Get(server + "/api/investigations/" + taskID + "/stream")
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned %s", resp.Status)
	}

	follower := cli.NewFollower(viewer.NewDecoder(hclog.NewNullLogger()))

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			follower.Feed(buf[:n])
		}
		if follower.Done() {
			return nil
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
	}
}

func init() {
	investigateCmd.Flags().StringVarP(&investigateServer, "server", "s", "http://localhost:8320", "Detection agent base URL")
	investigateCmd.Flags().StringVar(&investigateContext, "context", "", "Context ID to group related investigations")
	rootCmd.AddCommand(investigateCmd)
}
