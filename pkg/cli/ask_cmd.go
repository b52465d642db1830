package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type askPayload struct {
	Domain   string `json:"domain"`
	Question string `json:"question"`
}

type askResult struct {
	Domain    string                   `json:"domain"`
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	RowCount  int                      `json:"row_count"`
	Truncated bool                     `json:"truncated"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newAskCmd(host, token *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ask <domain> <question>",
		Short: "Ask a natural-language question about a domain",
		Example: `  dbx-copilot ask sales "total revenue by region last quarter"
  dbx-copilot ask support "how many open tickets are older than a week?"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args[1:], " ")
			result, err := postAsk(*host, *token, args[0], question, timeout)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall request timeout")
	return cmd
}

func postAsk(host, token, domain, question string, timeout time.Duration) (*askResult, error) {
	body, err := json.Marshal(askPayload{Domain: domain, Question: question})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(host, "/")+"/v1/ask", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reach engine at %s: %w", host, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Code != "" {
			return nil, fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("engine returned HTTP %d", resp.StatusCode)
	}

	var result askResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// printResult renders a plain aligned table; cells are stringified with %v.
func printResult(w io.Writer, result *askResult) {
	widths := make([]int, len(result.Columns))
	cells := make([][]string, 0, len(result.Rows))
	for i, col := range result.Columns {
		widths[i] = len(col)
	}
	for _, row := range result.Rows {
		line := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			line[i] = fmt.Sprintf("%v", row[col])
			if len(line[i]) > widths[i] {
				widths[i] = len(line[i])
			}
		}
		cells = append(cells, line)
	}

	for i, col := range result.Columns {
		fmt.Fprintf(w, "%-*s  ", widths[i], col)
	}
	fmt.Fprintln(w)
	for _, line := range cells {
		for i, cell := range line {
			fmt.Fprintf(w, "%-*s  ", widths[i], cell)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\n%d row(s)", result.RowCount)
	if result.Truncated {
		fmt.Fprint(w, " (truncated to the result size budget)")
	}
	fmt.Fprintln(w)
}

func newDomainsCmd(host *string) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the domains the engine can answer questions about",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := http.Get(strings.TrimRight(*host, "/") + "/v1/domains")
			if err != nil {
				return fmt.Errorf("reach engine at %s: %w", *host, err)
			}
			defer resp.Body.Close() //nolint:errcheck

			var out struct {
				Domains []string `json:"domains"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			for _, d := range out.Domains {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}
