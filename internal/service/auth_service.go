package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/config"
	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/session"
)

// ============================================
// Auth Service
// ============================================

// LoginResult carries everything a successful login returns: the JWT access
// token, the dual-encrypted session blob pair, and recovery passcodes when
// they were (re)issued.
type LoginResult struct {
	User          models.User
	Token         string
	SessionBlob   string
	StoreBlob     string
	RecoveryCodes []string
	FirstLogin    bool
}

type AuthService interface {
	Register(ctx context.Context, name, mobile string) (*models.User, error)
	Login(ctx context.Context, mobile, loginCode string) (*LoginResult, error)
	Recover(ctx context.Context, mobile, passcode, newLoginCode string) (*LoginResult, error)
	ValidateToken(tokenString string) (*jwt.Token, error)
	MobileFromToken(token *jwt.Token) (string, error)
	VerifySession(sessionBlob, storeBlob string) bool
}

type authService struct {
	cfg    *config.Config
	gw     gateway.Gateway
	crypto *session.CryptoContext
}

func NewAuthService(cfg *config.Config, gw gateway.Gateway) AuthService {
	return &authService{
		cfg:    cfg,
		gw:     gw,
		crypto: session.NewContext(cfg.SessionSecret),
	}
}

// Register creates an account. The login code is set on first login, not
// here; registering only claims the mobile and the display name.
func (s *authService) Register(ctx context.Context, name, mobile string) (*models.User, error) {
	if err := models.ValidateMobile("mobile", mobile); err != nil {
		return nil, err
	}
	name = models.NormalizeName(name)
	if err := models.ValidateName("name", name); err != nil {
		return nil, err
	}

	existing, err := s.gw.Read(ctx, models.UserPath(mobile))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Validation("mobile", "already registered")
	}

	user := models.User{Mobile: mobile, Name: name}
	if err := s.gw.Write(ctx, models.UserPath(mobile), user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates a user. The first successful login claims the account:
// it sets the login code and issues the one-time recovery passcodes, which
// are returned exactly once.
func (s *authService) Login(ctx context.Context, mobile, loginCode string) (*LoginResult, error) {
	if err := models.ValidateMobile("mobile", mobile); err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, mobile)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{User: *user}

	if user.LoginCode == nil {
		if err := validateLoginCode(loginCode); err != nil {
			return nil, err
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(loginCode), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash login code: %w", err)
		}
		codes, err := generatePasscodes(passcodeCount)
		if err != nil {
			return nil, err
		}
		if err := s.gw.Merge(ctx, models.UserPath(mobile), map[string]any{
			"loginCode":     string(hashed),
			"recoveryCodes": codes,
		}); err != nil {
			return nil, err
		}
		result.FirstLogin = true
		result.RecoveryCodes = codes
	} else {
		if err := bcrypt.CompareHashAndPassword([]byte(*user.LoginCode), []byte(loginCode)); err != nil {
			return nil, apperr.NotAuthorized("invalid login code")
		}
	}

	if err := s.issueCredentials(result, mobile); err != nil {
		return nil, err
	}
	return result, nil
}

// Recover authenticates with a one-shot recovery passcode and sets a new
// login code. Spending the last passcode regenerates a fresh set, returned
// in the result.
func (s *authService) Recover(ctx context.Context, mobile, passcode, newLoginCode string) (*LoginResult, error) {
	if err := models.ValidateMobile("mobile", mobile); err != nil {
		return nil, err
	}
	if err := validateLoginCode(newLoginCode); err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, mobile)
	if err != nil {
		return nil, err
	}

	remaining := make([]string, 0, len(user.RecoveryCodes))
	found := false
	for _, code := range user.RecoveryCodes {
		if !found && code == passcode {
			found = true
			continue
		}
		remaining = append(remaining, code)
	}
	if !found {
		return nil, apperr.NotAuthorized("invalid recovery passcode")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newLoginCode), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash login code: %w", err)
	}

	result := &LoginResult{User: *user}
	if len(remaining) == 0 {
		remaining, err = generatePasscodes(passcodeCount)
		if err != nil {
			return nil, err
		}
		result.RecoveryCodes = remaining
	}

	if err := s.gw.Merge(ctx, models.UserPath(mobile), map[string]any{
		"loginCode":     string(hashed),
		"recoveryCodes": remaining,
	}); err != nil {
		return nil, err
	}

	if err := s.issueCredentials(result, mobile); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *authService) ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
}

func (s *authService) MobileFromToken(token *jwt.Token) (string, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	mobile, ok := claims["sub"].(string)
	if !ok || mobile == "" {
		return "", fmt.Errorf("missing subject claim")
	}
	return mobile, nil
}

func (s *authService) VerifySession(sessionBlob, storeBlob string) bool {
	return s.crypto.Verify(sessionBlob, storeBlob)
}

func (s *authService) issueCredentials(result *LoginResult, mobile string) error {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": mobile,
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(s.cfg.JWTExpiry) * time.Hour).Unix(),
		"jti": uuid.New().String(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	result.Token = token

	sessionBlob, storeBlob, err := s.crypto.Seal([]byte(mobile + "|" + claims["jti"].(string)))
	if err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}
	result.SessionBlob = sessionBlob
	result.StoreBlob = storeBlob
	return nil
}

func (s *authService) loadUser(ctx context.Context, mobile string) (*models.User, error) {
	data, err := s.gw.Read(ctx, models.UserPath(mobile))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, apperr.NotFound("user " + mobile)
	}
	var user models.User
	if err := decode(data, &user); err != nil {
		return nil, err
	}
	user.Mobile = mobile
	return &user, nil
}

func validateLoginCode(code string) error {
	if len(code) < 4 || len(code) > 15 {
		return apperr.Validation("loginCode", "must be 4 to 15 characters")
	}
	return nil
}

// passcodeAlphabet avoids ambiguous glyphs (no 0/O, 1/I).
const (
	passcodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	passcodeCount    = 3
)

// generatePasscodes mints one-shot recovery codes in XXXX-XXXX-XXXX form.
func generatePasscodes(n int) ([]string, error) {
	out := make([]string, n)
	for i := range out {
		raw := make([]byte, 12)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate passcode: %w", err)
		}
		var b strings.Builder
		for j, r := range raw {
			if j > 0 && j%4 == 0 {
				b.WriteByte('-')
			}
			b.WriteByte(passcodeAlphabet[int(r)%len(passcodeAlphabet)])
		}
		out[i] = b.String()
	}
	return out, nil
}
