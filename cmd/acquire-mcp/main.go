// acquire-mcp bridges the acquire HTTP API to MCP clients over stdio.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// acquireRequest mirrors the acquire API request model.
type acquireRequest struct {
	URL             string `json:"url"`
	Engine          string `json:"engine,omitempty"`
	Wait            string `json:"wait,omitempty"`
	WaitSelector    string `json:"wait_selector,omitempty"`
	Stealth         bool   `json:"stealth,omitempty"`
	Profile         string `json:"profile,omitempty"`
	ExtractText     bool   `json:"extract_text,omitempty"`
	ExtractMarkdown bool   `json:"extract_markdown,omitempty"`
}

// acquireResponse mirrors the acquire API response model.
type acquireResponse struct {
	URL         string `json:"url"`
	FinalURL    string `json:"final_url"`
	Title       string `json:"title"`
	HTML        string `json:"html"`
	Text        string `json:"text"`
	Markdown    string `json:"markdown"`
	StatusCode  int    `json:"status_code"`
	Engine      string `json:"engine"`
	CacheStatus string `json:"cache_status"`
	Error       *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// batchRequest mirrors the acquire batch API request model.
type batchRequest struct {
	URLs    []string       `json:"urls"`
	Options acquireRequest `json:"options"`
}

// searchRequest mirrors the acquire search API request model.
type searchRequest struct {
	Query  string `json:"query"`
	Engine string `json:"engine,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func main() {
	apiURL := os.Getenv("ACQUIRE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("ACQUIRE_API_KEY")

	s := server.NewMCPServer(
		"acquire",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	acquirePageTool := mcp.NewTool("acquire_page",
		mcp.WithDescription("Fetch a web page and return its content as markdown. Falls back from plain HTTP to a headless browser for JavaScript-heavy pages."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to fetch"),
		),
		mcp.WithString("engine",
			mcp.Description("Fetch engine: 'auto' (default), 'http', 'pooled', 'browser', or 'attached'"),
			mcp.Enum("auto", "http", "pooled", "browser", "attached"),
		),
		mcp.WithString("wait",
			mcp.Description("Load-completion policy: 'none', 'dom' (default), or 'network'"),
			mcp.Enum("none", "dom", "network"),
		),
		mcp.WithString("profile",
			mcp.Description("Session profile for the attached engine (reuses a live browser session)"),
		),
	)
	s.AddTool(acquirePageTool, handleAcquirePage(apiURL, apiKey))

	acquireBatchTool := mcp.NewTool("acquire_batch",
		mcp.WithDescription("Fetch multiple URLs and return markdown content for each. Failed targets are reported individually and never fail the batch."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of URLs to fetch"),
		),
	)
	s.AddTool(acquireBatchTool, handleAcquireBatch(apiURL, apiKey))

	webSearchTool := mcp.NewTool("web_search",
		mcp.WithDescription("Run a web search and return structured results (title, URL, snippet)."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search phrase"),
		),
		mcp.WithString("engine",
			mcp.Description("Search engine: 'google' (default), 'bing', or 'duckduckgo'"),
			mcp.Enum("google", "bing", "duckduckgo"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10, max: 50)"),
		),
	)
	s.AddTool(webSearchTool, handleWebSearch(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the acquire API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until status is no longer "processing" or context is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			if apiKey != "" {
				req.Header.Set("X-API-Key", apiKey)
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != "processing" {
				return body, nil
			}
		}
	}
}

func handleAcquirePage(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := acquireRequest{
			URL:             url,
			Engine:          request.GetString("engine", ""),
			Wait:            request.GetString("wait", ""),
			Profile:         request.GetString("profile", ""),
			ExtractMarkdown: true,
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/acquire", reqBody)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var result acquireResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if result.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", result.Error.Kind, result.Error.Message)), nil
		}

		content := result.Markdown
		if content == "" {
			content = result.HTML
		}
		header := fmt.Sprintf("# %s\nURL: %s\nEngine: %s\n\n", result.Title, result.FinalURL, result.Engine)
		return mcp.NewToolResultText(header + content), nil
	}
}

func handleAcquireBatch(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		rawURLs, ok := args["urls"].([]interface{})
		if !ok || len(rawURLs) == 0 {
			return mcp.NewToolResultError("urls is required and must be a non-empty array"), nil
		}
		urls := make([]string, 0, len(rawURLs))
		for _, raw := range rawURLs {
			if s, ok := raw.(string); ok {
				urls = append(urls, s)
			}
		}

		reqBody := batchRequest{
			URLs:    urls,
			Options: acquireRequest{ExtractMarkdown: true},
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/batch", reqBody)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var job struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(respBody, &job); err != nil || job.ID == "" {
			return mcp.NewToolResultError("failed to start batch job"), nil
		}

		settled, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/batch/"+job.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(settled)), nil
	}
}

func handleWebSearch(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		reqBody := searchRequest{
			Query:  query,
			Engine: request.GetString("engine", ""),
			Limit:  request.GetInt("limit", 0),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/search", reqBody)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(respBody)), nil
	}
}
