package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/car-rental-booking/internal/model"
)

// CarLister lists the catalogue, optionally filtered by status.
type CarLister interface {
    List(ctx context.Context, status *model.CarStatus) ([]*model.Car, error)
}

// PublicHandler serves the unauthenticated catalogue.
type PublicHandler struct {
    Cars CarLister
}

func NewPublicHandler(cars CarLister) *PublicHandler { return &PublicHandler{Cars: cars} }

type publicCar struct {
    ID    uint64 `json:"id"`
    Name  string `json:"name"`
    Price uint64 `json:"price"`
    Type  string `json:"type"`
    Image string `json:"image"`
}

// ListCars handles GET /cars: every bookable car.
func (h *PublicHandler) ListCars(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    available := model.CarAvailable
    cars, err := h.Cars.List(ctx, &available)
    if err != nil {
        return respondError(c, err, "Failed to fetch cars")
    }
    out := make([]publicCar, 0, len(cars))
    for _, car := range cars {
        out = append(out, publicCar{ID: car.ID, Name: car.Name, Price: car.Price, Type: car.Type, Image: car.Image})
    }
    return c.JSON(http.StatusOK, out)
}
