package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	pkgauth "github.com/angelmondragon/storefront-checkout/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	// ClientIDHeader identifies an anonymous storefront browser.
	ClientIDHeader = "X-Client-Id"
	// SessionTokenHeader carries a signed-in shopper's order-store token.
	SessionTokenHeader = "X-Session-Token"
)

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// ClientID requires the X-Client-Id header and picks up the optional
// session token forwarded to the order store.
func ClientID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := strings.TrimSpace(r.Header.Get(ClientIDHeader))
			if !clientIDPattern.MatchString(clientID) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, ClientIDHeader+" header required").
					WithDetails(map[string]any{"header": ClientIDHeader}))
				return
			}

			ctx := WithClientID(r.Context(), clientID)
			if token := pkgauth.BearerToken(r.Header.Get(SessionTokenHeader)); token != "" {
				ctx = context.WithValue(ctx, ctxSessionToken, token)
			}
			if logg != nil {
				ctx = logg.WithField(ctx, "client_id", clientID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
