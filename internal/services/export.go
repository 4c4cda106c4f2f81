package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"strings"
	"time"
)

type SummaryRow struct {
	EvaluationID string
	Type         EvaluationType
	Title        string
	Score        int
	CreatedAt    time.Time
}

// ExportSummaryCSV renders one row per evaluation, in the given order.
func ExportSummaryCSV(rows []SummaryRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"evaluation_id", "type", "title", "score", "created_at"})
	for _, r := range rows {
		rec := []string{
			r.EvaluationID,
			string(r.Type),
			csvText(r.Title),
			strconv.Itoa(r.Score),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportAnswersCSV renders a wide-format CSV with evaluation-per-row and one
// column per question. order fixes the row order; questions are sorted.
// Unanswered questions are left blank.
func ExportAnswersCSV(order []string, answers map[string]map[string]int) ([]byte, error) {
	questionSet := map[string]struct{}{}
	for _, m := range answers {
		for q := range m {
			questionSet[q] = struct{}{}
		}
	}
	questions := make([]string, 0, len(questionSet))
	for q := range questionSet {
		questions = append(questions, q)
	}
	sort.Strings(questions)

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := make([]string, 0, 1+len(questions))
	header = append(header, "evaluation_id")
	for _, q := range questions {
		header = append(header, csvText(q))
	}
	_ = w.Write(header)
	for _, id := range order {
		row := make([]string, 0, 1+len(questions))
		row = append(row, id)
		for _, q := range questions {
			if v, ok := answers[id][q]; ok {
				row = append(row, strconv.Itoa(v))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// csvText prefixes user-supplied text that a spreadsheet would evaluate as a
// formula. Numeric cells are written with strconv and never pass through here.
func csvText(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
