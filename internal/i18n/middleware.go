package i18n

import "net/http"

// Middleware injects a localizer into every request context. The language is
// taken from the "language" query parameter when present, otherwise the
// configured default applies. Analysis requests carry the exam taker's
// language choice this way.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := r.URL.Query().Get("language")
			if lang == "" {
				lang = defaultLang
			}
			ctx := WithLanguage(r.Context(), lang)
			ctx = WithLocalizer(ctx, NewLocalizer(lang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
