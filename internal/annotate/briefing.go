package annotate

import (
	"context"
	"errors"
	"fmt"

	"github.com/renderinc/notice-cache/internal/summarize"
)

// ErrNothingToBrief is returned when none of the requested notices has an
// interpretation yet
var ErrNothingToBrief = errors.New("no interpreted notices to brief")

// Briefing writes a briefing for role from the stored short
// interpretations of ids. Notices that were never interpreted are left out.
func (w *Worker) Briefing(ctx context.Context, ids []uint32, role string) (string, error) {
	items, err := w.store.Interpretations(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("load interpretations: %w", err)
	}

	var lines []summarize.BriefingLine
	for _, it := range items {
		if it.Interpretation == nil || it.Interpretation.ShortDescription == "" {
			continue
		}
		lines = append(lines, summarize.BriefingLine{
			Location: it.Location,
			Summary:  it.Interpretation.ShortDescription,
		})
	}
	if len(lines) == 0 {
		return "", ErrNothingToBrief
	}

	return w.summarizer.Brief(ctx, role, lines)
}
