// Package handlers agrupa os handlers HTTP da aplicação.
package handlers

import (
	"encoding/json"
	"net/http"
)

// PingHandler responde com uma mensagem simples para verificar a cadeia
// de admissão.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "pong"})
}
