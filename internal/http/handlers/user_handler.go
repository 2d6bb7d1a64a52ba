// User roster HTTP handlers.
//
//   - GET    /users          (admin, master; ?role= filters)
//   - POST   /users          (master)
//   - GET    /users/{id}     (admin, master)
//   - PATCH  /users/{id}     (master)
//   - DELETE /users/{id}     (master)
//   - PATCH  /users/me       (any role, own profile)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/services"
)

// CreateUserRequest is the JSON payload for adding a user.
type CreateUserRequest struct {
	Name     string `json:"name"     binding:"required,max=255"          example:"Siti Rahma"`
	Email    string `json:"email"    binding:"required,email,max=255"    example:"siti@helpdesk.com"`
	Password string `json:"password" binding:"required,min=8,max=72"     example:"s3cretpass"`
	Role     string `json:"role"     binding:"required,role"             example:"staff"`
	Address  string `json:"address"  binding:"max=255"`
	Avatar   string `json:"avatar"   binding:"omitempty,url,max=512"`
}

// UpdateUserRequest is a merge-patch of a user's profile. Role is not
// patchable.
type UpdateUserRequest struct {
	Name     *string `json:"name"     binding:"omitempty,min=1,max=255"`
	Email    *string `json:"email"    binding:"omitempty,email,max=255"`
	Password *string `json:"password" binding:"omitempty,min=8,max=72"`
	Address  *string `json:"address"  binding:"omitempty,max=255"`
	Avatar   *string `json:"avatar"   binding:"omitempty,max=512"`
}

func (r UpdateUserRequest) patch() services.UserPatch {
	return services.UserPatch{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
		Address:  r.Address,
		Avatar:   r.Avatar,
	}
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List users
// @Tags        Users
// @Security    BearerAuth
// @Produce     json
// @Param       role  query     string  false  "Filter by role"  Enums(master, admin, staff)
// @Success     200   {array}   domain.User
// @Failure     400   {object}  handlers.ErrorResponse "Bad role"
// @Failure     403   {object}  handlers.ErrorResponse "Forbidden"
// @Router      /users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	var roles []domain.Role
	for _, r := range c.QueryArray("role") {
		if !domain.Role(r).Valid() {
			fail(c, http.StatusBadRequest, ErrCodeValidation, "invalid role")
			return
		}
		roles = append(roles, domain.Role(r))
	}
	users, err := h.users.List(c.Request.Context(), roles...)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, users)
}

// GetUser godoc
// @ID          getUser
// @Summary     Get a user
// @Tags        Users
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      string  true  "User ID"  example(staff-1)
// @Success     200  {object}  domain.User
// @Failure     404  {object}  handlers.ErrorResponse "User not found"
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, u)
}

// CreateUser godoc
// @ID          createUser
// @Summary     Add a user
// @Tags        Users
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.CreateUserRequest  true  "New user"
// @Success     201   {object}  domain.User
// @Failure     400   {object}  handlers.ErrorResponse "Bad request"
// @Failure     409   {object}  handlers.ErrorResponse "Email taken"
// @Router      /users [post]
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}
	u, err := h.users.Add(c.Request.Context(), services.NewUser{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
		Address:  req.Address,
		Avatar:   req.Avatar,
	})
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusCreated, u)
}

// UpdateUser godoc
// @ID          updateUser
// @Summary     Update a user
// @Description Merge-patches the given user's profile.
// @Tags        Users
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id    path      string                      true  "User ID"
// @Param       body  body      handlers.UpdateUserRequest  true  "Fields to change"
// @Success     200   {object}  domain.User
// @Failure     404   {object}  handlers.ErrorResponse "User not found"
// @Failure     409   {object}  handlers.ErrorResponse "Email taken"
// @Router      /users/{id} [patch]
func (h *Handlers) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}
	u, err := h.users.UpdateByID(c.Request.Context(), c.Param("id"), req.patch())
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateMe godoc
// @ID          updateMe
// @Summary     Update own profile
// @Tags        Users
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.UpdateUserRequest  true  "Fields to change"
// @Success     200   {object}  domain.User
// @Failure     409   {object}  handlers.ErrorResponse "Email taken"
// @Router      /users/me [patch]
func (h *Handlers) UpdateMe(c *gin.Context) {
	me, found := actor(c)
	if !found {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}
	u, err := h.users.UpdateSelf(c.Request.Context(), me.ID, req.patch())
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, u)
}

// DeleteUser godoc
// @ID          deleteUser
// @Summary     Delete a user
// @Description Removes the user. Reports and messages keep their dangling references. Deleting an absent id succeeds.
// @Tags        Users
// @Security    BearerAuth
// @Param       id   path  string  true  "User ID"
// @Success     204  {string}  string "No Content"
// @Router      /users/{id} [delete]
func (h *Handlers) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
