package ai

import (
	"context"

	"github.com/amishk599/jobradar/internal/model"
)

// NopService is used when analysis.enabled is false. Every listing comes
// back Unknown without any LLM call.
type NopService struct{}

// NewNopService returns a NopService.
func NewNopService() *NopService {
	return &NopService{}
}

// Evaluate returns Unknown.
func (n *NopService) Evaluate(_ context.Context, _ model.AnalysisRequest, _ model.Settings) (model.Verdict, string, error) {
	return model.VerdictUnknown, "<p>Analysis is disabled.</p>", nil
}
