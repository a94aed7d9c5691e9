package mcp

import (
	"context"
	"fmt"

	"github.com/claude/sleepbuddy/internal/prompt"
	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) sleepWellness(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if h.ds == nil {
		return nil, errNoDataSource
	}
	args := req.Params.Arguments
	start, end, err := defaultTimeRange(args["start"], args["end"], h.opts.WindowDays)
	if err != nil {
		return nil, fmt.Errorf("invalid date format: %w", err)
	}

	report, err := h.analyzeRange(ctx, start, end, 0)
	if err != nil {
		return nil, err
	}

	return mcp.NewGetPromptResult(
		fmt.Sprintf("Sleep wellness review of %d nights", len(report.Records)),
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(prompt.Sleep(report.Result))),
		},
	), nil
}
