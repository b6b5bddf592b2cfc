package handler

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strconv"
    "strings"
    "time"

    "github.com/gabriel-vasile/mimetype"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/car-rental-booking/internal/model"
    "github.com/iliyamo/car-rental-booking/internal/repository"
)

// ListCars handles GET /admin/cars[?status=available|unavailable].
func (h *AdminHandler) ListCars(c echo.Context) error {
    var filter *model.CarStatus
    if s := c.QueryParam("status"); s != "" {
        st, ok := model.ParseCarStatus(s)
        if !ok {
            return respondError(c, ErrInvalidStatus, "")
        }
        filter = &st
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    cars, err := h.Cars.List(ctx, filter)
    if err != nil {
        return respondError(c, err, "Failed to fetch cars")
    }
    return c.JSON(http.StatusOK, cars)
}

// GetCar handles GET /admin/cars/:id.
func (h *AdminHandler) GetCar(c echo.Context) error {
    id, err := parseID(c)
    if err != nil {
        return respondError(c, err, "")
    }
    car, err := h.Cars.GetByID(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err, "Car not found")
    }
    return c.JSON(http.StatusOK, car)
}

// CreateCar handles POST /admin/cars as multipart/form-data with fields
// name, price, type and an image file.  The image must sniff as image/*
// and fit in MaxUpload bytes; it is stored as <unix millis><ext> under
// ImageDir and served from /images.
func (h *AdminHandler) CreateCar(c echo.Context) error {
    name := strings.TrimSpace(c.FormValue("name"))
    typ := strings.TrimSpace(c.FormValue("type"))
    price, perr := strconv.ParseUint(strings.TrimSpace(c.FormValue("price")), 10, 64)
    fh, ferr := c.FormFile("image")
    if name == "" || perr != nil || price == 0 || ferr != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "Missing fields! name, price and image are required"})
    }
    if fh.Size > h.MaxUpload {
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": fmt.Sprintf("image exceeds %d bytes", h.MaxUpload)})
    }

    src, err := fh.Open()
    if err != nil {
        return respondError(c, err, "Server error")
    }
    defer src.Close()
    mt, err := mimetype.DetectReader(src)
    if err != nil || !strings.HasPrefix(mt.String(), "image/") {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "Only image files are allowed"})
    }
    if _, err := src.Seek(0, io.SeekStart); err != nil {
        return respondError(c, err, "Server error")
    }

    filename := fmt.Sprintf("%d%s", time.Now().UnixMilli(), mt.Extension())
    path := filepath.Join(h.ImageDir, filename)
    if err := saveFile(path, src); err != nil {
        return respondError(c, err, "Server error")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    car := &model.Car{Name: name, Price: price, Type: typ, Image: "/images/" + filename, Status: model.CarAvailable}
    if err := h.Cars.Create(ctx, car); err != nil {
        _ = os.Remove(path)
        return respondError(c, err, "Server error")
    }
    h.purgeCars(c)
    return c.JSON(http.StatusCreated, echo.Map{"message": "Car added successfully", "car": car})
}

func saveFile(path string, src io.Reader) error {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return err
    }
    dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
    if err != nil {
        return err
    }
    if _, err := io.Copy(dst, src); err != nil {
        dst.Close()
        os.Remove(path)
        return err
    }
    return dst.Close()
}

type carUpdateReq struct {
    Name   *string `json:"name"`
    Price  *uint64 `json:"price" validate:"omitempty,gt=0"`
    Type   *string `json:"type"`
    Image  *string `json:"image"`
    Status *string `json:"status"`
}

// UpdateCar handles PUT /admin/cars/:id with a JSON body of the fields to
// change.
func (h *AdminHandler) UpdateCar(c echo.Context) error {
    id, err := parseID(c)
    if err != nil {
        return respondError(c, err, "")
    }
    var req carUpdateReq
    if err := bind(c, &req); err != nil {
        return respondError(c, err, "")
    }
    u := repository.CarUpdate{Name: req.Name, Price: req.Price, Type: req.Type, Image: req.Image}
    if req.Status != nil {
        st, ok := model.ParseCarStatus(*req.Status)
        if !ok {
            return respondError(c, ErrInvalidStatus, "")
        }
        u.Status = &st
    }
    if u.Empty() {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "no fields to update"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Cars.Update(ctx, id, u); err != nil {
        return respondError(c, err, "Car not found")
    }
    h.purgeCars(c)
    return c.JSON(http.StatusOK, echo.Map{"message": "Car updated successfully"})
}

// DeleteCar handles DELETE /admin/cars/:id.  Bookings of the car cascade.
func (h *AdminHandler) DeleteCar(c echo.Context) error {
    id, err := parseID(c)
    if err != nil {
        return respondError(c, err, "")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    car, err := h.Cars.GetByID(ctx, id)
    if err != nil {
        return respondError(c, err, "Car not found")
    }
    if err := h.Cars.Delete(ctx, id); err != nil {
        return respondError(c, err, "Car not found")
    }
    if name := strings.TrimPrefix(car.Image, "/images/"); name != car.Image && name != "" {
        if err := os.Remove(filepath.Join(h.ImageDir, filepath.Base(name))); err != nil && !os.IsNotExist(err) {
            c.Logger().Warnf("remove image of car %d: %v", id, err)
        }
    }
    h.purgeCars(c)
    return c.JSON(http.StatusOK, echo.Map{"message": "Car deleted successfully"})
}
