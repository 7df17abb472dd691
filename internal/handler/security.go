package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/Fabricesimpore/zakamall/internal/domain/auth"
	"github.com/Fabricesimpore/zakamall/pkg/httpmiddleware"
)

// RequireAPIKey returns a middleware that authenticates requests via the
// api_key header. Keys are stored as HMAC-SHA256 hashes with a server-side
// pepper, so a leaked table does not leak usable keys.
func RequireAPIKey(apikeys auth.Repository, pepper []byte) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("api_key")
			if key == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			info, err := apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			// Constant-time comparison guards against timing side-channels
			// even though the lookup already succeeded: the stored hash could
			// differ from what we computed if the repository returns a stale
			// or wrong row.
			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
