package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/internal/utils"
)

// Claims are the advisory claims read from an access token.
// They are decoded without signature verification and must never be used to decide
// whether a token is still valid; the resource server is the authority on that.
type Claims struct {
	Subject           string
	Issuer            string
	Email             string
	EmailVerified     bool
	PreferredUsername string
	GivenName         string
	FamilyName        string
	Roles             []string
	IssuedAt          time.Time
	ExpiresAt         time.Time
}

// ParseClaims decodes the claims of a JWT access token without verifying it.
// Opaque (non-JWT) tokens yield ErrInvalidToken.
func ParseClaims(raw string) (Claims, error) {
	if strings.Count(raw, ".") != 2 {
		return Claims{}, autherrors.ErrInvalidToken
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return Claims{}, autherrors.Wrapf(autherrors.ErrInvalidToken, "ParseClaims: %v", err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, autherrors.ErrInvalidToken
	}

	c := Claims{
		Email:             stringClaim(mapClaims, "email"),
		PreferredUsername: stringClaim(mapClaims, "preferred_username"),
		GivenName:         stringClaim(mapClaims, "given_name"),
		FamilyName:        stringClaim(mapClaims, "family_name"),
	}
	c.Subject, _ = mapClaims.GetSubject()
	c.Issuer, _ = mapClaims.GetIssuer()
	if verified, ok := mapClaims["email_verified"].(bool); ok {
		c.EmailVerified = verified
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if roles, ok := mapClaims["roles"].([]any); ok {
		c.Roles = utils.ToStringSlice(roles)
	}
	if c.GivenName == "" && c.FamilyName == "" {
		if name := stringClaim(mapClaims, "name"); name != "" {
			c.GivenName, c.FamilyName, _ = strings.Cut(name, " ")
		}
	}
	return c, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
