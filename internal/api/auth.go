package api

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

const authRealm = `Basic realm="illuminode API"`

var (
	errNoCredentials  = errors.New("authentication required")
	errWrongScheme    = errors.New("invalid authentication type")
	errMalformedCreds = errors.New("invalid credentials format")
	errBadCredentials = errors.New("invalid credentials")
)

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}

// basicAuth checks HTTP basic credentials on every operation that declares a
// security requirement. EventSource cannot set headers, so the base64
// "user:pass" may also come in the auth query parameter.
func (s *Server) basicAuth(username, password string) func(huma.Context, func(huma.Context)) {
	want := []byte(username + ":" + password)

	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		got, err := presentedCredentials(ctx)
		if err == nil && subtle.ConstantTimeCompare(got, want) != 1 {
			err = errBadCredentials
		}
		if err != nil {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, err.Error())
			return
		}
		next(ctx)
	}
}

func presentedCredentials(ctx huma.Context) ([]byte, error) {
	encoded := ctx.Query("auth")
	if header := ctx.Header("Authorization"); header != "" {
		var ok bool
		encoded, ok = strings.CutPrefix(header, "Basic ")
		if !ok {
			return nil, errWrongScheme
		}
	}
	if encoded == "" {
		return nil, errNoCredentials
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || !strings.Contains(string(decoded), ":") {
		return nil, errMalformedCreds
	}
	return decoded, nil
}
