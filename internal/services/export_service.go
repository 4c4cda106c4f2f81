package services

import (
	"context"
)

type ExportParams struct {
	Format string // "summary" (default) or "answers"
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the caller's evaluation history as CSV. Access rules
// are those of EvaluationService.ListHistory.
type ExportService struct {
	evaluations *EvaluationService
}

func NewExportService(evaluations *EvaluationService) *ExportService {
	return &ExportService{evaluations: evaluations}
}

func (s *ExportService) ExportCSV(ctx context.Context, sess *Session, params ExportParams) (*ExportResult, error) {
	format := params.Format
	if format == "" {
		format = "summary"
	}
	if format != "summary" && format != "answers" {
		return nil, NewInvalidError("unsupported format")
	}
	list, err := s.evaluations.ListHistory(ctx, sess)
	if err != nil {
		return nil, err
	}

	switch format {
	case "answers":
		order := make([]string, 0, len(list))
		answers := make(map[string]map[string]int, len(list))
		for _, ev := range list {
			order = append(order, ev.ID)
			answers[ev.ID] = ev.Answers
		}
		b, err := ExportAnswersCSV(order, answers)
		if err != nil {
			return nil, NewDependencyError("failed to render export", err)
		}
		return &ExportResult{Filename: "evaluation-answers.csv", ContentType: "text/csv; charset=utf-8", Data: b}, nil
	default:
		b, err := ExportSummaryCSV(buildSummaryRows(list))
		if err != nil {
			return nil, NewDependencyError("failed to render export", err)
		}
		return &ExportResult{Filename: "evaluations.csv", ContentType: "text/csv; charset=utf-8", Data: b}, nil
	}
}

func buildSummaryRows(list []*Evaluation) []SummaryRow {
	out := make([]SummaryRow, 0, len(list))
	for _, ev := range list {
		out = append(out, SummaryRow{
			EvaluationID: ev.ID,
			Type:         ev.Type,
			Title:        ev.Title,
			Score:        ev.Score,
			CreatedAt:    ev.CreatedAt,
		})
	}
	return out
}
