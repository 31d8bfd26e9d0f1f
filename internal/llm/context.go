package llm

import "context"

// Purposes tag requests in the event log and metrics.
const (
	PurposeChat       = "chat"
	PurposeCurriculum = "curriculum-gen"
	PurposeJudge      = "judge"
)

type purposeKey struct{}

func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the purpose set by WithPurpose, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if p, ok := ctx.Value(purposeKey{}).(string); ok && p != "" {
		return p
	}
	return "unknown"
}
