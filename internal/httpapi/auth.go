package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wan-elmus/AutiCare/internal/models"
	"github.com/wan-elmus/AutiCare/internal/repository"
)

// Claims JWT 载荷：邮箱做连接注册表主键，数字 ID 做数据归属
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AuthHandler 注册/登录与令牌签发
type AuthHandler struct {
	usersRepo *repository.UsersRepository
	jwtSecret []byte
	expiry    time.Duration
	logger    *zap.Logger
}

// NewAuthHandler 创建认证 Handler
func NewAuthHandler(usersRepo *repository.UsersRepository, jwtSecret string, expiry time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		usersRepo: usersRepo,
		jwtSecret: []byte(jwtSecret),
		expiry:    expiry,
		logger:    logger,
	}
}

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

// Register 注册监护人账户
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	// 1. 邮箱唯一性
	if _, err := h.usersRepo.GetUserByEmail(ctx, req.Email); err == nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		h.logger.Error("Failed to check existing user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	// 2. 密码散列
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("Failed to hash password", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user := &models.User{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		PasswordHash: string(hash),
	}
	id, err := h.usersRepo.CreateUser(ctx, user)
	if err != nil {
		h.logger.Error("Failed to create user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	user.ID = id

	h.logger.Info("User registered",
		zap.Int64("user_id", id),
		zap.String("email", user.Email),
	)

	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login 登录并签发令牌（同时写入 token cookie，供 WebSocket 握手使用）
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := h.usersRepo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("Failed to look up user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.expiry),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("User logged in",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email),
	)

	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// Logout 清除令牌 cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeMessage(w, http.StatusOK, "logged out")
}

func (h *AuthHandler) issueToken(user *models.User) (string, error) {
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(h.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

// VerifyToken 解析并校验令牌
func (h *AuthHandler) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// tokenFromRequest 取令牌：Authorization Bearer 头 > token cookie > token 查询参数
// 查询参数留给浏览器 WebSocket 握手（无法自定义请求头）
func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// AuthedHandler 带身份的处理函数
type AuthedHandler func(w http.ResponseWriter, r *http.Request, claims *Claims)

// RequireAuth 认证中间件：未带有效令牌一律 401
func (h *AuthHandler) RequireAuth(next AuthedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		claims, err := h.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next(w, r, claims)
	}
}
