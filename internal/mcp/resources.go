package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) recentAnomalies(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if h.ds == nil {
		return nil, errNoDataSource
	}
	end := time.Now()
	report, err := h.analyzeRange(ctx, end.AddDate(0, 0, -h.opts.WindowDays), end, 0)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(map[string]any{
		"window_days": h.opts.WindowDays,
		"records":     report.Records,
		"result":      report.Result,
	})
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
