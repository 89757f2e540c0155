package handler

import (
	"net/http"

	"github.com/Baaaki/car-rental/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CarHandler struct {
	carService *service.CarService
}

func NewCarHandler(carService *service.CarService) *CarHandler {
	return &CarHandler{carService: carService}
}

// CarRequest is shared by create and update. On update absent fields are
// left unchanged.
type CarRequest struct {
	Make         *string          `json:"make" binding:"omitempty,max=50"`
	Model        *string          `json:"model" binding:"omitempty,max=50"`
	Year         *int             `json:"year"`
	LicensePlate *string          `json:"license_plate" binding:"omitempty,max=20"`
	Category     *string          `json:"category" binding:"omitempty,max=50"`
	Transmission *string          `json:"transmission"`
	FuelType     *string          `json:"fuel_type"`
	SeatCapacity *int             `json:"seat_capacity"`
	DailyRate    *decimal.Decimal `json:"daily_rate"`
	ImageURL     *string          `json:"image_url" binding:"omitempty,max=255"`
	Status       *string          `json:"status"`
}

func (r CarRequest) input() service.CarInput {
	return service.CarInput{
		Make:         r.Make,
		Model:        r.Model,
		Year:         r.Year,
		LicensePlate: r.LicensePlate,
		Category:     r.Category,
		Transmission: r.Transmission,
		FuelType:     r.FuelType,
		SeatCapacity: r.SeatCapacity,
		DailyRate:    r.DailyRate,
		ImageURL:     r.ImageURL,
		Status:       r.Status,
	}
}

type CarListQuery struct {
	Status       string `form:"status" binding:"omitempty,oneof=available rented maintenance"`
	All          bool   `form:"all"`
	Transmission string `form:"transmission"`
	FuelType     string `form:"fuel_type"`
	Search       string `form:"search"`
}

type PopularQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// GET /api/cars
func (h *CarHandler) Index(c *gin.Context) {
	var q CarListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	cars, err := h.carService.List(c.Request.Context(), service.CarListQuery{
		Status:       q.Status,
		All:          q.All,
		Transmission: q.Transmission,
		FuelType:     q.FuelType,
		Search:       q.Search,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cars)
}

// GET /api/cars/popular
func (h *CarHandler) Popular(c *gin.Context) {
	var q PopularQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	cars, err := h.carService.Popular(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cars)
}

// GET /api/cars/:id
func (h *CarHandler) Show(c *gin.Context) {
	id, ok := pathID(c, "Car")
	if !ok {
		return
	}

	car, err := h.carService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, car)
}

// POST /api/staff/cars, /api/admin/cars
func (h *CarHandler) Store(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	car, err := h.carService.Create(c.Request.Context(), actor, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Car created successfully",
		"car":     car,
	})
}

// PUT /api/staff/cars/:id, /api/admin/cars/:id
func (h *CarHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Car")
	if !ok {
		return
	}

	var req CarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	car, err := h.carService.Update(c.Request.Context(), actor, id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Car updated successfully",
		"car":     car,
	})
}

// DELETE /api/staff/cars/:id, /api/admin/cars/:id
func (h *CarHandler) Destroy(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Car")
	if !ok {
		return
	}

	if err := h.carService.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Car deleted successfully"})
}
