package middleware

import (
	"net/http"
	"os"
	"strings"
)

// CORS для браузерной панели мониторинга. Разрешённые origins задаются
// переменной CORS_ALLOWED_ORIGINS (через запятую); dev-серверы фронтенда
// разрешены всегда.
var allowedOrigins = buildAllowedOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

func buildAllowedOrigins(env string) map[string]bool {
	origins := map[string]bool{
		"http://localhost:3000": true,
		"http://127.0.0.1:3000": true,
		"http://localhost:8080": true,
		"http://127.0.0.1:8080": true,
		"http://localhost:5173": true, // Vite
		"http://127.0.0.1:5173": true,
	}
	for _, origin := range strings.Split(env, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins[origin] = true
		}
	}
	return origins
}

// CORS выставляет заголовки кросс-доменного доступа и закрывает preflight
//
// Известный origin получает себя в Allow-Origin вместе с credentials
// (wildcard с credentials браузеры не принимают). Запрос без Origin -
// не браузер (curl, healthcheck), получает wildcard. Неизвестный origin
// не получает заголовков, браузер блокирует ответ сам.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		switch {
		case allowedOrigins[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		case origin == "":
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
