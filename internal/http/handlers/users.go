package handlers

import (
	"net/http"

	"busease/internal/http/middleware"
	"busease/internal/services"

	"github.com/gin-gonic/gin"
)

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Img      *string `json:"img"`
	Password *string `json:"password"`
	IsAdmin  *bool   `json:"isAdmin"`
}

// GET /api/users
func (h *Handler) GetUsers(c *gin.Context) {
	list, err := h.users(c).List(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	u, err := h.users(c).Get(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// PUT /api/users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	u, err := h.users(c).Update(c.Request.Context(), middleware.Actor(c), id, services.UserPatch{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Img:      req.Img,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// DELETE /api/users/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.users(c).Delete(c.Request.Context(), middleware.Actor(c), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User and associated bookings have been deleted."})
}
