package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/gazette/models"
)

func main() {
	apiURL := os.Getenv("GAZETTE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("GAZETTE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "GAZETTE_API_KEY is required")
		os.Exit(1)
	}

	s := newServer(&apiClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 120 * time.Second},
	})

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(c *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"gazette",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	tocTool := mcp.NewTool("get_table_of_contents",
		mcp.WithDescription("List the articles currently on the configured news site's front page, as titles with article URLs."),
	)
	s.AddTool(tocTool, handleTableOfContents(c))

	articleTool := mcp.NewTool("get_article",
		mcp.WithDescription("Download one news article and return its headline and paragraphs as plain text."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The article URL, as listed by get_table_of_contents"),
		),
	)
	s.AddTool(articleTool, handleArticle(c))

	return s
}

// apiClient calls the gazette HTTP API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// call sends body (when non-nil) as JSON and decodes the response into out.
// Error statuses still carry a JSON body, so only transport and decode
// failures are returned.
func (c *apiClient) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func errorText(fallback string, e *models.ErrorDetail) string {
	if e == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func handleTableOfContents(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp models.TOCResponse
		if err := c.call(ctx, http.MethodGet, "/api/v1/toc", nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(errorText("table of contents download failed", resp.Error)), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s (%d articles)\nSource: %s\n\n", resp.Site, resp.Count, resp.SourceURL)
		for i, e := range resp.Entries {
			fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, e.Title, e.URL)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleArticle(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var resp models.ArticleResponse
		if err := c.call(ctx, http.MethodPost, "/api/v1/article", models.ArticleRequest{URL: url}, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(errorText("article download failed", resp.Error)), nil
		}

		text := fmt.Sprintf("Title: %s\nSource: %s\n\n%s", resp.Title, resp.URL, strings.Join(resp.Paragraphs, "\n\n"))
		return mcp.NewToolResultText(text), nil
	}
}
