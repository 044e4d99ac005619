package jwt

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Service verifies bearer tokens issued by the identity provider and turns
// their claims into an acting user.
type Service interface {
	JWTAuth() *jwtauth.JWTAuth
	ActorFromClaims(claims map[string]interface{}) (user.Actor, error)
	// GenerateAccessToken signs a token for the given actor. Used by the
	// dev tooling and the handler tests.
	GenerateAccessToken(actor user.Actor, ttl time.Duration) (token string, expiresAt int64, err error)
}

type JWTService struct {
	tokenAuth *jwtauth.JWTAuth
}

func NewJWTService(cfg config.JWTConfig) Service {
	skew := cfg.AcceptableSkew
	if skew <= 0 {
		skew = 30 * time.Second
	}
	return &JWTService{
		tokenAuth: jwtauth.New("HS256", []byte(cfg.Secret), nil, jwt.WithAcceptableSkew(skew)),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

// ActorFromClaims requires an access token carrying user_id and a known
// role. employee_id is optional for admins.
func (j *JWTService) ActorFromClaims(claims map[string]interface{}) (user.Actor, error) {
	if tokenType, _ := claims["type"].(string); tokenType != "access" {
		return user.Actor{}, fmt.Errorf("%w: not an access token", user.ErrMissingIdentity)
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return user.Actor{}, fmt.Errorf("%w: user_id claim missing", user.ErrMissingIdentity)
	}

	roleStr, _ := claims["role"].(string)
	role := user.Role(roleStr)
	if !role.IsValid() {
		return user.Actor{}, fmt.Errorf("%w: unknown role %q", user.ErrMissingIdentity, roleStr)
	}

	actor := user.Actor{UserID: userID, Role: role}
	if employeeID, ok := claims["employee_id"].(string); ok && employeeID != "" {
		actor.EmployeeID = &employeeID
	}
	if role == user.RoleEmployee && actor.EmployeeID == nil {
		return user.Actor{}, fmt.Errorf("%w: employee token without employee_id", user.ErrMissingIdentity)
	}
	return actor, nil
}

func (j *JWTService) GenerateAccessToken(actor user.Actor, ttl time.Duration) (token string, expiresAt int64, err error) {
	expiresAt = time.Now().Add(ttl).Unix()

	claims := map[string]interface{}{
		"user_id": actor.UserID,
		"role":    string(actor.Role),
		"type":    "access",
		"exp":     expiresAt,
	}
	if actor.EmployeeID != nil {
		claims["employee_id"] = *actor.EmployeeID
	}

	_, token, err = j.tokenAuth.Encode(claims)
	return token, expiresAt, err
}
