package handler

import (
    "context"  // bounds DB calls
    "errors"
    "net/http" // status codes
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/car-rental-booking/internal/config"
    "github.com/iliyamo/car-rental-booking/internal/middleware"
    "github.com/iliyamo/car-rental-booking/internal/model"
    "github.com/iliyamo/car-rental-booking/internal/repository"
    "github.com/iliyamo/car-rental-booking/internal/utils"
)

// AccountStore is the slice of repository.AccountRepo the auth endpoints use.
type AccountStore interface {
    CreateRegistered(ctx context.Context, email, password, gender, idNumber string, role model.Role, cost int) (*model.RegisteredAccount, error)
    GetByEmail(ctx context.Context, email string) (model.Account, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg      config.Config
    Accounts AccountStore
}

func NewAuthHandler(cfg config.Config, accounts AccountStore) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Accounts: accounts}
}

// ----- DTOs -----

type signupReq struct {
    Email    string `json:"email" validate:"required,email"`
    Password string `json:"password" validate:"required"`
    Gender   string `json:"gender" validate:"required"`
    IDNumber string `json:"idNumber" validate:"required"`
}

type loginReq struct {
    Email    string `json:"email" validate:"required"`
    Password string `json:"password" validate:"required"`
}

type userPart struct {
    ID     uint64 `json:"id"`
    Email  string `json:"email"`
    Gender string `json:"gender,omitempty"`
    Role   string `json:"role"`
}

// Signup creates a registered account with role user.  An email known only
// from guest bookings is claimed, keeping those bookings.
func (h *AuthHandler) Signup(c echo.Context) error {
    var req signupReq
    if err := bind(c, &req); err != nil {
        return respondError(c, err, "")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    acc, err := h.Accounts.CreateRegistered(ctx, req.Email, req.Password, req.Gender, req.IDNumber, model.RoleUser, h.Cfg.BcryptCost)
    if err != nil {
        if errors.Is(err, repository.ErrEmailExists) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "Email already exists"})
        }
        return respondError(c, err, "Server error during signup")
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "message": "Signup successful",
        "user":    userPart{ID: acc.ID, Email: acc.Email, Gender: acc.Gender, Role: string(acc.Role)},
    })
}

// Login issues a session token.  Unknown emails, guest accounts and wrong
// passwords all answer 401 after the same bcrypt work.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := bind(c, &req); err != nil {
        return respondError(c, err, "")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    acc, err := h.Accounts.GetByEmail(ctx, req.Email)
    if err != nil && !errors.Is(err, repository.ErrNotFound) {
        return respondError(c, err, "Login failed")
    }
    reg, ok := acc.(*model.RegisteredAccount)
    if !ok {
        utils.BurnPasswordCheck(req.Password)
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
    }
    if !utils.VerifyPassword(reg.PasswordHash, req.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
    }

    ttl := time.Duration(h.Cfg.AccessTTLMin) * time.Minute
    tok, err := utils.NewSessionToken(h.Cfg.JWTSecret, reg.ID, reg.Email, string(reg.Role), ttl)
    if err != nil {
        return respondError(c, err, "Login failed")
    }
    return c.JSON(http.StatusOK, echo.Map{
        "token": tok.Token,
        "user":  userPart{ID: reg.ID, Email: reg.Email, Role: string(reg.Role)},
    })
}

// Verify echoes the identity of a valid session (protected).
func (h *AuthHandler) Verify(c echo.Context) error {
    id, ok := middleware.CurrentIdentity(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Session verification failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"user": id})
}
