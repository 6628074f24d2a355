package handlers

import (
	"net/http"

	"busease/internal/domain"
	"busease/internal/services"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Img      string `json:"img"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	user, err := h.auth(c).Register(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Img:      req.Img,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User has been created.", "user": user})
}

// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	res, err := h.auth(c).Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case domain.IsNotFound(err):
		RespondError(c, http.StatusNotFound, "User not found!", nil)
		return
	case services.IsCredentialError(err):
		RespondError(c, http.StatusBadRequest, "Wrong password or username!", nil)
		return
	default:
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"details": res.User,
		"isAdmin": res.User.IsAdmin,
		"token":   res.Token,
	})
}
