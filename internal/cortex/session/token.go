package session

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt"
)

// tokenExpiry reads the exp claim of a cortex token without verifying it. The service
// signs the token with its own key; the client only uses the expiry for diagnostics.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	switch exp := claims["exp"].(type) {
	case float64:
		return time.Unix(int64(exp), 0), true
	case json.Number:
		v, err := exp.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(v, 0), true
	}
	return time.Time{}, false
}
