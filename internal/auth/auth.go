package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/airbadge/internal/config"
	"github.com/gdg-garage/airbadge/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const (
	DiscordAuthorizeEndpoint = "https://discord.com/api/oauth2/authorize"
	DiscordTokenEndpoint     = "https://discord.com/api/oauth2/token"
	DiscordUserAPI           = "https://discord.com/api/users/@me"

	CookieName    = "auth_token"
	TokenDuration = 24 * time.Hour
)

// Sessions is notified when a user logs in or out.
type Sessions interface {
	Start(ctx context.Context, userID uint) error
	End(ctx context.Context, userID uint) error
}

type AuthHandler struct {
	oauthConfig *oauth2.Config
	db          *gorm.DB
	cfg         *config.Config
	sessions    Sessions
	logger      *zap.Logger
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB, sessions Sessions) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  DiscordAuthorizeEndpoint,
				TokenURL: DiscordTokenEndpoint,
			},
		},
		db:       db,
		cfg:      cfg,
		sessions: sessions,
		logger:   zap.L(),
	}
}

func (h *AuthHandler) SetSessions(sessions Sessions) {
	h.sessions = sessions
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	url := h.oauthConfig.AuthCodeURL("state", oauth2.AccessTypeOnline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		http.Error(w, "Failed to exchange token", http.StatusInternalServerError)
		return
	}

	client := h.oauthConfig.Client(r.Context(), token)

	resp, err := client.Get(DiscordUserAPI)
	if err != nil {
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	var discordUser struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Avatar   string `json:"avatar"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&discordUser); err != nil {
		http.Error(w, "Failed to decode user info", http.StatusInternalServerError)
		return
	}

	user, err := h.saveUser(discordUser.ID, discordUser.Username, discordUser.Email, discordUser.Avatar)
	if err != nil {
		http.Error(w, "Failed to save user", http.StatusInternalServerError)
		return
	}

	jwtToken, err := h.GenerateToken(user.ID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, h.sessionCookie(jwtToken))

	if h.sessions != nil {
		if err := h.sessions.Start(r.Context(), user.ID); err != nil {
			h.logger.Warn("Failed to start badge session", zap.Uint("user_id", user.ID), zap.Error(err))
		}
	}

	w.Write([]byte(fmt.Sprintf("Welcome %s! You are logged in.", user.Username)))
}

func (h *AuthHandler) saveUser(discordID, username, email, avatar string) (models.User, error) {
	var user models.User
	if err := h.db.FirstOrInit(&user, models.User{DiscordID: discordID}).Error; err != nil {
		return user, err
	}
	user.Username = username
	user.Email = email
	user.Avatar = avatar

	return user, h.db.Save(&user).Error
}

func (h *AuthHandler) sessionCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Expires:  time.Now().Add(TokenDuration),
		HttpOnly: true,
		Path:     "/",
		Secure:   h.cfg.AppEnv == "production",
	}
}

func (h *AuthHandler) GenerateToken(userID uint) (string, error) {
	token, _, err := h.generateToken(userID)
	return token, err
}

func (h *AuthHandler) generateToken(userID uint) (string, time.Time, error) {
	expiry := time.Now().Add(TokenDuration)
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     expiry.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.JWTSecret))
	return signed, expiry, err
}

// ParseToken validates a session token and returns its user and expiry.
func (h *AuthHandler) ParseToken(tokenString string) (uint, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, time.Time{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("invalid token claims")
	}
	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("invalid token claims")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, time.Time{}, fmt.Errorf("token has no expiry")
	}
	return uint(userIDFloat), exp.Time, nil
}

type userTokenSource struct {
	h      *AuthHandler
	userID uint
}

func (s userTokenSource) Token() (*oauth2.Token, error) {
	signed, expiry, err := s.h.generateToken(s.userID)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: signed, TokenType: "Bearer", Expiry: expiry}, nil
}

// TokenSource issues bearer tokens that act as userID, renewing them before
// they expire.
func (h *AuthHandler) TokenSource(userID uint) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, userTokenSource{h: h, userID: userID})
}

type AuthInput struct {
	Cookie        string `header:"Cookie"`
	Authorization string `header:"Authorization"`
}

// Authorize resolves the caller from the request context, a bearer token or
// the session cookie, in that order.
func (h *AuthHandler) Authorize(ctx context.Context, in AuthInput) (uint, error) {
	if userID, ok := UserIDFromContext(ctx); ok {
		return userID, nil
	}

	if token, ok := bearerToken(in.Authorization); ok {
		userID, _, err := h.ParseToken(token)
		if err != nil {
			return 0, huma.Error401Unauthorized("Unauthorized: Invalid token")
		}
		return userID, nil
	}

	token := cookieValue(in.Cookie)
	if token == "" {
		return 0, huma.Error401Unauthorized("Unauthorized: No token found")
	}
	userID, _, err := h.ParseToken(token)
	if err != nil {
		return 0, huma.Error401Unauthorized("Unauthorized: Invalid token")
	}
	return userID, nil
}

type MeResponse struct {
	Body struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Avatar   string `json:"avatar"`
	}
}

func (h *AuthHandler) HandleMe(ctx context.Context, input *AuthInput) (*MeResponse, error) {
	userID, err := h.Authorize(ctx, *input)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		return nil, huma.Error404NotFound("User not found")
	}

	res := &MeResponse{}
	res.Body.ID = user.ID
	res.Body.Username = user.Username
	res.Body.Email = user.Email
	res.Body.Avatar = user.Avatar
	return res, nil
}

type LogoutResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Message string `json:"message"`
	}
}

// HandleLogout pushes the user's final snapshot, tears the badge session down
// and expires the cookie. A failed final sync does not block the logout.
func (h *AuthHandler) HandleLogout(ctx context.Context, input *AuthInput) (*LogoutResponse, error) {
	userID, err := h.Authorize(ctx, *input)
	if err != nil {
		return nil, err
	}

	if h.sessions != nil {
		if err := h.sessions.End(ctx, userID); err != nil {
			h.logger.Warn("Final sync on logout failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}

	res := &LogoutResponse{}
	res.SetCookie = http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}
	res.Body.Message = "Logged out"
	return res, nil
}
