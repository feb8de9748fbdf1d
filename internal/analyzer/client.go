package analyzer

import (
	"context"
	"fmt"

	"github.com/amishk599/jobradar/internal/channel"
	"github.com/amishk599/jobradar/internal/model"
)

// Client dispatches requests to the analyzer context over a channel.
type Client struct {
	ch *channel.Channel
}

// NewClient wraps a running channel.
func NewClient(ch *channel.Channel) *Client {
	return &Client{ch: ch}
}

// Status is the preflight check. A reply carrying a configuration problem
// returns an error wrapping model.ErrServiceConfiguration.
func (c *Client) Status(ctx context.Context) error {
	if _, err := c.ch.Send(ctx, channel.TypeStatus, nil); err != nil {
		return fmt.Errorf("analyzer status: %w", err)
	}
	return nil
}

// Analyze sends one listing for evaluation and waits for the result.
func (c *Client) Analyze(ctx context.Context, req model.AnalysisRequest) (model.AnalysisResult, error) {
	reply, err := c.ch.Send(ctx, channel.TypeAnalyze, req)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("analyze %s: %w", req.ListingID, err)
	}
	var result model.AnalysisResult
	if err := reply.Decode(&result); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("analyze %s: %w", req.ListingID, err)
	}
	if result.ListingID == "" {
		result.ListingID = req.ListingID
	}
	result.Verdict = result.Verdict.Normalize()
	return result, nil
}
