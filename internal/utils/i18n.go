package utils

// Minimal server-side i18n for API messages and transactional email.

var translations = map[string]map[string]string{
	"en": {
		"health.ok":                "ok",
		"evaluation.guest.created": "Evaluation submitted successfully. Check your inbox for your results.",
		"email.results.subject":    "Your security evaluation results",
		"email.results.greeting":   "Hello",
		"email.results.intro":      "Thank you for completing the evaluation. Your score is",
		"email.results.cta":        "View my results",
		"email.results.code":       "Your access code",
		"email.welcome.subject":    "Welcome to Vigil",
		"email.welcome.greeting":   "Welcome",
		"email.welcome.body":       "Your account is ready. Start with an initial evaluation to measure your security posture.",
		"email.welcome.cta":        "Open Vigil",
		"evaluation.type.INITIAL":  "initial",
		"evaluation.type.ADVANCED": "advanced",
	},
	"fr": {
		"health.ok":                "ok",
		"evaluation.guest.created": "Évaluation envoyée. Consultez votre boîte mail pour vos résultats.",
		"email.results.subject":    "Les résultats de votre évaluation de sécurité",
		"email.results.greeting":   "Bonjour",
		"email.results.intro":      "Merci d'avoir complété l'évaluation. Votre score est de",
		"email.results.cta":        "Voir mes résultats",
		"email.results.code":       "Votre code d'accès",
		"email.welcome.subject":    "Bienvenue sur Vigil",
		"email.welcome.greeting":   "Bienvenue",
		"email.welcome.body":       "Votre compte est prêt. Commencez par une évaluation initiale pour mesurer votre niveau de sécurité.",
		"email.welcome.cta":        "Ouvrir Vigil",
		"evaluation.type.INITIAL":  "initiale",
		"evaluation.type.ADVANCED": "avancée",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}
