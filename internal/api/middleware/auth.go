package middleware

import (
	"net/http"

	"tradebot/pkg/crypto"
)

// DebugAuth - middleware для защиты debug/pprof endpoints
//
// Токен передаётся как пароль HTTP Basic Auth (имя пользователя
// игнорируется) и сверяется с bcrypt-хешем из конфигурации. Хеш в
// конфиге вместо открытого токена: утечка конфига не даёт доступ.
// Пустой хеш = debug endpoints выключены (403 на любой запрос).
//
// Использование:
//
//	debug := router.PathPrefix("/debug").Subrouter()
//	debug.Use(middleware.DebugAuth(cfg.Security.DebugTokenHash))
func DebugAuth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				http.Error(w, "Debug endpoints disabled", http.StatusForbidden)
				return
			}

			_, token, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// bcrypt сравнение constant-time
			if !crypto.CheckPasswordMatch(token, tokenHash) {
				w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
