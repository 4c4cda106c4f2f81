package services

import "context"

// ResultMessage is everything a notifier needs to tell a guest where their
// results live.
type ResultMessage struct {
	To           string
	DisplayName  string
	EvaluationID string
	AccessCode   string
	Type         EvaluationType
	Score        int
	ResultsURL   string
	Locale       string
}

type WelcomeMessage struct {
	To          string
	DisplayName string
	SiteURL     string
	Locale      string
}

// ResultNotifier delivers transactional email. Implementations return the
// provider's delivery id.
type ResultNotifier interface {
	SendResults(ctx context.Context, msg ResultMessage) (string, error)
	SendWelcome(ctx context.Context, msg WelcomeMessage) (string, error)
}
