package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/car-rental-booking/internal/middleware"
    "github.com/iliyamo/car-rental-booking/internal/model"
)

// ListUsers handles GET /admin/users.  Guests are included.
func (h *AdminHandler) ListUsers(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    users, err := h.Accounts.List(ctx)
    if err != nil {
        return respondError(c, err, "Failed to fetch users")
    }
    return c.JSON(http.StatusOK, users)
}

type roleReq struct {
    Role string `json:"role"`
}

// UpdateUserRole handles PUT /admin/users/:id/role.  An unknown role is
// rejected before any row is touched.
func (h *AdminHandler) UpdateUserRole(c echo.Context) error {
    id, err := parseID(c)
    if err != nil {
        return respondError(c, err, "")
    }
    var req roleReq
    if err := c.Bind(&req); err != nil {
        return respondError(c, errInvalidBody, "")
    }
    role, ok := model.ParseRole(req.Role)
    if !ok {
        return respondError(c, ErrInvalidRole, "")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Accounts.UpdateRole(ctx, id, role); err != nil {
        return respondError(c, err, "User not found")
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message": "Role updated successfully",
        "userId":  id,
        "newRole": role,
    })
}

// DeleteUser handles DELETE /admin/users/:id.  Their bookings cascade.
// Admins cannot delete their own account.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
    id, err := parseID(c)
    if err != nil {
        return respondError(c, err, "")
    }
    if me, ok := middleware.CurrentIdentity(c); ok && me.ID == id {
        return c.JSON(http.StatusConflict, echo.Map{"error": "cannot delete your own account"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Accounts.Delete(ctx, id); err != nil {
        return respondError(c, err, "User not found")
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
}
