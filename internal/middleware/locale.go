package middleware

import (
	"context"
	"net/http"

	"github.com/soaringjerry/Vigil/internal/utils"
)

type localeKey struct{}

const (
	defaultLocale = "en"
	localeCookie  = "vigil_lang"
)

// SupportedLocales are the languages email templates and messages exist in.
var SupportedLocales = []string{"en", "fr"}

// LocaleMiddleware picks the request locale from ?lang, then the vigil_lang
// cookie, then Accept-Language.
func LocaleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		preferred := r.URL.Query().Get("lang")
		if preferred == "" {
			if c, err := r.Cookie(localeCookie); err == nil {
				preferred = c.Value
			}
		}
		locale := utils.DetermineLocale(preferred, r.Header.Get("Accept-Language"), SupportedLocales, defaultLocale)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), localeKey{}, locale)))
	})
}

func LocaleFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(localeKey{}).(string); ok && s != "" {
		return s
	}
	return defaultLocale
}
