package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/example/inventory-ledger/internal/auth"
)

// AuthHandlers issues service tokens against registered client credentials
type AuthHandlers struct {
	jwtService *auth.JWTService
	// client_id to bcrypt-hashed secret
	clients map[string]string
}

func NewAuthHandlers(jwtService *auth.JWTService, clients map[string]string) *AuthHandlers {
	return &AuthHandlers{
		jwtService: jwtService,
		clients:    clients,
	}
}

type tokenRequest struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Channel      string   `json:"channel"`
	Scopes       []string `json:"scopes"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

// IssueToken exchanges client credentials for a JWT
func (h *AuthHandlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, ok := h.clients[req.ClientID]
	if !ok || !auth.CheckClientSecret(req.ClientSecret, hash) {
		log.Warn().Str("client_id", req.ClientID).Msg("token request with bad credentials")
		http.Error(w, "invalid client credentials", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(req.ClientID, req.Channel, req.Scopes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.Unix(),
	})
}
