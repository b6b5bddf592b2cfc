package handler

import (
    "context"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/car-rental-booking/internal/model"
    "github.com/iliyamo/car-rental-booking/internal/queue"
    "github.com/iliyamo/car-rental-booking/internal/repository"
)

type AdminCarStore interface {
    Create(ctx context.Context, c *model.Car) error
    GetByID(ctx context.Context, id uint64) (*model.Car, error)
    List(ctx context.Context, status *model.CarStatus) ([]*model.Car, error)
    Update(ctx context.Context, id uint64, u repository.CarUpdate) error
    Delete(ctx context.Context, id uint64) error
    Count(ctx context.Context) (int64, error)
}

type AdminBookingStore interface {
    ListDetailed(ctx context.Context) ([]repository.BookingDetail, error)
    UpdateStatus(ctx context.Context, id uint64, status model.BookingStatus) error
    Delete(ctx context.Context, id uint64) error
    Stats(ctx context.Context) (active int64, revenue uint64, err error)
}

type AdminAccountStore interface {
    List(ctx context.Context) ([]repository.AccountSummary, error)
    UpdateRole(ctx context.Context, id uint64, role model.Role) error
    Delete(ctx context.Context, id uint64) error
    Count(ctx context.Context) (int64, error)
}

// EventPublisher is implemented by *queue.Publisher.
type EventPublisher interface {
    Publish(ctx context.Context, ev queue.BookingEvent) error
}

// AdminHandler serves the /admin back office.  Every route is behind
// JWTAuth and RequireRole("admin").
type AdminHandler struct {
    Cars     AdminCarStore
    Bookings AdminBookingStore
    Accounts AdminAccountStore
    Events   EventPublisher // optional

    // PurgeCars drops cached /cars responses after a catalogue change.
    PurgeCars func(ctx context.Context) error

    ImageDir  string
    MaxUpload int64
}

// NewAdminHandler panics if a store is missing.
func NewAdminHandler(cars AdminCarStore, bookings AdminBookingStore, accounts AdminAccountStore) *AdminHandler {
    if cars == nil || bookings == nil || accounts == nil {
        panic("nil store passed to NewAdminHandler")
    }
    return &AdminHandler{Cars: cars, Bookings: bookings, Accounts: accounts, ImageDir: "images", MaxUpload: 5 << 20}
}

func parseID(c echo.Context) (uint64, error) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return 0, errInvalidID
    }
    return id, nil
}

func (h *AdminHandler) purgeCars(c echo.Context) {
    if h.PurgeCars == nil {
        return
    }
    if err := h.PurgeCars(c.Request().Context()); err != nil {
        c.Logger().Warnf("purge cars cache: %v", err)
    }
}
