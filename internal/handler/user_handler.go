package handler

import (
	"net/http"

	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/repository"
	"github.com/Baaaki/car-rental/internal/service"
	"github.com/Baaaki/car-rental/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRequest is the body of admin create/update and of profile edits.
// role and is_verified are ignored on the profile endpoint.
type UserRequest struct {
	Username    *string `json:"username" binding:"omitempty,min=3,max=50"`
	FullName    *string `json:"full_name" binding:"omitempty,max=100"`
	Email       *string `json:"email" binding:"omitempty,email,max=100"`
	Password    *string `json:"password" binding:"omitempty,min=6"`
	Role        *string `json:"role" binding:"omitempty,oneof=admin staff customer"`
	IsVerified  *bool   `json:"is_verified"`
	PhoneNumber *string `json:"phone_number" binding:"omitempty,max=20"`
	Address     *string `json:"address"`
}

func (r UserRequest) input() service.UserInput {
	return service.UserInput{
		Username:    r.Username,
		FullName:    r.FullName,
		Email:       r.Email,
		Password:    r.Password,
		Role:        r.Role,
		IsVerified:  r.IsVerified,
		PhoneNumber: r.PhoneNumber,
		Address:     r.Address,
	}
}

type UserListQuery struct {
	Role       string `form:"role" binding:"omitempty,oneof=admin staff customer"`
	IsVerified *bool  `form:"is_verified"`
	Search     string `form:"search"`
}

// GET /api/admin/users
func (h *UserHandler) Index(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var q UserListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	users, err := h.userService.List(c.Request.Context(), actor, repository.UserFilter{
		Role:       models.Role(q.Role),
		IsVerified: q.IsVerified,
		Search:     q.Search,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// GET /api/admin/users/:id
func (h *UserHandler) Show(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "User")
	if !ok {
		return
	}

	user, err := h.userService.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// POST /api/admin/users
func (h *UserHandler) Store(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.userService.Create(c.Request.Context(), actor, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    user,
	})
}

// PUT /api/admin/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "User")
	if !ok {
		return
	}

	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.userService.Update(c.Request.Context(), actor, id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    user,
	})
}

// DELETE /api/admin/users/:id
func (h *UserHandler) Destroy(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "User")
	if !ok {
		return
	}

	logger.Log.Info("Admin deleting user",
		zap.Uint("admin_id", actor.ID),
		zap.Uint("target_user_id", id),
	)

	if err := h.userService.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// Me returns the authenticated user.
// GET /api/user
func (h *UserHandler) Me(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	user, err := h.userService.Me(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// POST /api/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), actor, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    user,
	})
}
