package handler

import (
	"net/http"

	"github.com/Baaaki/car-rental/internal/journal"
	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/repository"
	"github.com/Baaaki/car-rental/internal/service"
	"github.com/Baaaki/car-rental/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RentalHandler struct {
	rentalService *service.RentalService
}

func NewRentalHandler(rentalService *service.RentalService) *RentalHandler {
	return &RentalHandler{rentalService: rentalService}
}

type CreateRentalRequest struct {
	CarID      uint   `json:"car_id" binding:"required"`
	PickupDate string `json:"pickup_date" binding:"required"`
	ReturnDate string `json:"return_date" binding:"required"`
}

// UpdateRentalRequest drives PUT /rentals/:id. rental_status selects a state
// transition; without it payment_status is updated.
type UpdateRentalRequest struct {
	RentalStatus  *string `json:"rental_status"`
	PaymentStatus *string `json:"payment_status"`
}

type RentalListQuery struct {
	UserID uint   `form:"user_id"`
	Status string `form:"status"`
	Search string `form:"search"`
}

// POST /api/rentals
func (h *RentalHandler) Store(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CreateRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	rental, err := h.rentalService.Create(c.Request.Context(), actor, service.CreateRentalInput{
		CarID:      req.CarID,
		PickupDate: req.PickupDate,
		ReturnDate: req.ReturnDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Booking created successfully",
		"rental":  rental,
	})
}

// Index lists rentals newest first. Customers only ever see their own.
// GET /api/rentals
func (h *RentalHandler) Index(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var q RentalListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	f := repository.RentalFilter{UserID: q.UserID, Search: q.Search}
	if q.Status != "" {
		st, ok := models.ParseRentalStatus(q.Status)
		if !ok {
			respondError(c, service.NewValidationError("status", "The selected status is invalid."))
			return
		}
		f.Status = st
	}

	rentals, err := h.rentalService.List(c.Request.Context(), actor, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rentals)
}

// PUT /api/rentals/:id, /api/staff/rentals/:id
func (h *RentalHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Rental")
	if !ok {
		return
	}

	var req UpdateRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	rental, err := h.rentalService.Update(c.Request.Context(), actor, id, service.UpdateRentalInput{
		RentalStatus:  req.RentalStatus,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		logger.Log.Info("Rental update rejected",
			zap.Uint("rental_id", id),
			zap.Uint("actor_id", actor.ID),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}

	message := "Rental updated"
	if req.RentalStatus != nil {
		message = "Status updated successfully"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"rental":  rental,
	})
}

// POST /api/rentals/:id/cancel
func (h *RentalHandler) Cancel(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Rental")
	if !ok {
		return
	}

	rental, err := h.rentalService.UpdateStatus(c.Request.Context(), actor, id, string(models.RentalCancelled))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Status updated successfully",
		"rental":  rental,
	})
}

// DELETE /api/admin/rentals/:id
func (h *RentalHandler) Destroy(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Rental")
	if !ok {
		return
	}

	if err := h.rentalService.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rental deleted successfully"})
}

// History returns the recorded status transitions of a rental, oldest first.
// GET /api/admin/rentals/:id/history
func (h *RentalHandler) History(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "Rental")
	if !ok {
		return
	}

	entries, err := h.rentalService.History(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"rental_id": id,
		"history":   entries,
	})
}
