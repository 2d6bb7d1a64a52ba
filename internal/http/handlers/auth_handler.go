// Authentication HTTP handlers.
//
//   - POST /auth/login   (public)
//   - POST /auth/logout
//   - GET  /auth/me
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-helpdesk-backend/internal/http/middleware"
)

// LoginRequest is the JSON payload for logging in.
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email,max=255" example:"staff@helpdesk.com"`
	Password string `json:"password" binding:"required,max=72"        example:"password123"`
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Exchanges email and password for a bearer token bound to a new session.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  services.LoginResult
// @Failure     400   {object}  handlers.ErrorResponse "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse "Invalid credentials"
// @Failure     429   {object}  handlers.ErrorResponse "Too many attempts"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, res)
}

// Logout godoc
// @ID          logout
// @Summary     Log out
// @Description Revokes the session behind the presented token.
// @Tags        Auth
// @Security    BearerAuth
// @Success     204  {string}  string "No Content"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthenticated"
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.SessionID(c)); err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Tags        Auth
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse "Unauthenticated"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, u)
}
