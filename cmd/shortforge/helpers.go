package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"

	"shortforge/internal/api"
)

// apiClient talks to a running daemon over its HTTP bind address.
type apiClient struct {
	baseURL string
	client  *http.Client
}

func newAPIClient(bind string) *apiClient {
	return &apiClient{
		baseURL: "http://" + bind,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) postJSON(path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.client.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("reach daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *apiClient) getJSON(path string, out any) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("reach daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readScriptFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script file: %w", err)
	}
	text := string(bytes.TrimSpace(data))
	if text == "" {
		return "", fmt.Errorf("script file %s is empty", path)
	}
	return text, nil
}

func renderJobTable(jobs []api.JobView) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Status", "Stage", "Duration", "Created"})
	for _, job := range jobs {
		duration := ""
		if job.DurationSeconds > 0 {
			duration = fmt.Sprintf("%.1fs", job.DurationSeconds)
		}
		t.AppendRow(table.Row{job.ID, job.Status, job.Stage, duration, job.CreatedAt})
	}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		t.SetStyle(table.StyleLight)
	} else {
		t.SetStyle(table.StyleDefault)
	}
	t.Render()
}

func printJob(job api.JobView) {
	fmt.Printf("ID:        %s\n", job.ID)
	fmt.Printf("Script:    %s\n", job.ScriptID)
	fmt.Printf("Status:    %s\n", job.Status)
	if job.Stage != "" {
		fmt.Printf("Stage:     %s\n", job.Stage)
	}
	if job.DurationSeconds > 0 {
		fmt.Printf("Duration:  %.2fs\n", job.DurationSeconds)
	}
	if job.OutputPath != "" {
		fmt.Printf("Output:    %s\n", job.OutputPath)
	}
	if job.ErrorMessage != "" {
		fmt.Printf("Error:     %s\n", job.ErrorMessage)
	}
	fmt.Printf("Created:   %s\n", job.CreatedAt)
	fmt.Printf("Updated:   %s\n", job.UpdatedAt)
}
