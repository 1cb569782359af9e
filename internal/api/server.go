package api

import (
	"crypto/tls"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/viper"

	"github.com/defterhane/defter-wallet/internal/wallet"
)

func NewAPI(w *wallet.Wallet, name string, httpMode bool) *API {
	return &API{
		Wallet:   w,
		Name:     name,
		HttpMode: httpMode,
	}
}

func (s *API) CORSMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowedOrigin := viper.GetString("allowed_origin")
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (a *API) JWTMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Println("Authorization header missing.")
			http.Error(w, "Unauthorized: Authorization header missing", http.StatusUnauthorized)
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Println("Invalid Authorization header format.")
			http.Error(w, "Unauthorized: Invalid token format", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return GetJWTKey(), nil
		})

		if err != nil {
			if validationErr, ok := err.(*jwt.ValidationError); ok {
				if validationErr.Errors == jwt.ValidationErrorExpired {
					log.Println("Token expired.")
					http.Error(w, "Token expired", http.StatusUnauthorized)
					return
				}
			}
			log.Println("Invalid token:", err)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		if !token.Valid {
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// HandleLogin exchanges the configured wallet API key for a short-lived JWT.
func (s *API) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Cannot parse JSON", http.StatusBadRequest)
		return
	}

	expected := viper.GetString("wallet_api_key")
	if expected == "" {
		http.Error(w, "Wallet API key not configured", http.StatusInternalServerError)
		return
	}
	if payload.APIKey != expected {
		log.Println("Login attempt with wrong API key.")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tokenString, err := GenerateJWT(s.Name)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": tokenString})
}

// StartHTTPServer registers the wallet routes and serves until the listener
// fails. HTTPS is opt-in through the use_https config key.
func (s *API) StartHTTPServer() error {
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return s.CORSMiddleware(s.JWTMiddleware(ApplyMiddleware(h, ErrorMiddleware, LoggingMiddleware)))
	}

	http.HandleFunc("/open-line", authed(s.HandleOpenLine))
	http.HandleFunc("/transfer", authed(s.HandleTransfer))
	http.HandleFunc("/close-line", authed(s.HandleCloseLine))
	http.HandleFunc("/withdraw", authed(s.HandleWithdraw))
	http.HandleFunc("/balance", authed(s.HandleBalance))
	http.HandleFunc("/line", authed(s.HandleGetLine))
	http.HandleFunc("/lines", authed(s.HandleKnownLines))
	http.HandleFunc("/history", authed(s.HandleHistory))
	http.HandleFunc("/pending", authed(s.HandlePending))

	// Route for exchanging the API key for a JWT
	http.HandleFunc("/login", s.CORSMiddleware(s.HandleLogin))

	server := &http.Server{
		Addr:         ":" + viper.GetString("api_port"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if viper.GetBool("use_https") {
		certFile := viper.GetString("cert_file")
		keyFile := viper.GetString("key_file")
		if _, err := os.Stat(certFile); os.IsNotExist(err) {
			log.Fatalf("HTTPS requested but certificate %s not found", certFile)
		}

		server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
			CipherSuites: []uint16{
				tls.TLS_AES_128_GCM_SHA256,
				tls.TLS_AES_256_GCM_SHA384,
				tls.TLS_CHACHA20_POLY1305_SHA256,
			},
		}

		log.Printf("Starting HTTPS server on %s", server.Addr)
		return server.ListenAndServeTLS(certFile, keyFile)
	}

	log.Printf("Starting HTTP server on %s", server.Addr)
	return server.ListenAndServe()
}
