package deferral

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/org/jitaccess/internal/apperrors"
)

// Claim names match the original deferral token's field names exactly, so
// a token issued by one process can be verified by another running the
// same secret without a translation layer.
const (
	claimAudience = "aud"
	claimGroupID  = "grp"
	claimUserID   = "usr"
	claimInput    = "inp"
)

// jwtSigner signs deferral tokens as HS256 JWTs.
type jwtSigner struct {
	secret []byte
}

// NewJWTSigner creates a TokenSigner backed by HMAC-SHA256 over secret.
// secret must be kept identical across every process that issues or picks
// up tokens.
func NewJWTSigner(secret []byte) TokenSigner {
	return &jwtSigner{secret: secret}
}

func (s *jwtSigner) Sign(claims Claims, expiry time.Time) (string, error) {
	audience := make(jwt.ClaimStrings, len(claims.Assignees))
	copy(audience, claims.Assignees)

	registered := jwt.MapClaims{
		claimAudience: audience,
		claimGroupID:  claims.GroupID,
		claimUserID:   claims.User,
		claimInput:    claims.Input,
		"exp":         jwt.NewNumericDate(expiry),
		"iat":         jwt.NewNumericDate(time.Now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, registered)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindTokenVerification, err, "signing deferral token")
	}
	return signed, nil
}

func (s *jwtSigner) Verify(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return Claims{}, apperrors.Wrap(apperrors.KindTokenVerification, err, "verifying deferral token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, apperrors.New(apperrors.KindTokenVerification, "deferral token has no claims")
	}

	groupID, _ := mapClaims[claimGroupID].(string)
	user, _ := mapClaims[claimUserID].(string)

	var assignees []string
	if raw, ok := mapClaims[claimAudience].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				assignees = append(assignees, s)
			}
		}
	}

	input, _ := mapClaims[claimInput].(map[string]any)

	return Claims{
		Assignees: assignees,
		GroupID:   groupID,
		User:      user,
		Input:     input,
	}, nil
}
