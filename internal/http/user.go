package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"taskboard/internal/service"
	"taskboard/internal/storage"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
	Role     string `json:"role"`
	Title    string `json:"title"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	ID       string  `json:"_id"`
	Username *string `json:"username"`
	Title    *string `json:"title"`
	Role     *string `json:"role"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type activateRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	res, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
		Role:     req.Role,
		Title:    req.Title,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setAuthCookies(c, res.Token, res.RefreshToken)
	c.JSON(http.StatusCreated, authToResponse(res))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	res, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setAuthCookies(c, res.Token, res.RefreshToken)
	c.JSON(http.StatusOK, authToResponse(res))
}

func (h *Handler) logout(c *gin.Context) {
	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (h *Handler) teamList(c *gin.Context) {
	users, err := h.users.Team(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]TeamMemberResponse, len(users))
	for i := range users {
		resp[i] = teamMemberToResponse(users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) updateProfile(c *gin.Context) {
	in, err := bindProfileUpdate(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if in.Avatar != nil {
		if closer, ok := in.Avatar.Body.(interface{ Close() error }); ok {
			defer closer.Close()
		}
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  true,
		"message": "Profile Updated Successfully.",
		"user":    userToResponse(*user),
	})
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), callerFrom(c).ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": true, "message": "Password changed successfully."})
}

func (h *Handler) activateUser(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "isActive is required")
		return
	}

	user, err := h.users.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		h.fail(c, err)
		return
	}

	state := "deactivated"
	if user.IsActive {
		state = "activated"
	}
	c.JSON(http.StatusCreated, gin.H{"status": true, "message": "User account has been " + state})
}

func (h *Handler) deleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "message": "User deleted successfully"})
}

func (h *Handler) notificationsList(c *gin.Context) {
	notices, err := h.notices.Unread(c.Request.Context(), callerFrom(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]NoticeResponse, len(notices))
	for i := range notices {
		resp[i] = noticeToResponse(notices[i])
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	err := h.notices.MarkRead(c.Request.Context(), callerFrom(c).ID, c.Query("isReadType"), c.Query("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": true, "message": "Done"})
}

// bindProfileUpdate accepts JSON or multipart form bodies. Empty fields count as absent.
func bindProfileUpdate(c *gin.Context) (service.UpdateProfileInput, error) {
	var in service.UpdateProfileInput

	if c.ContentType() == binding.MIMEJSON {
		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return in, errors.New("Invalid request body")
		}
		in.TargetID = req.ID
		in.Username = nonEmpty(req.Username)
		in.Title = nonEmpty(req.Title)
		in.Role = nonEmpty(req.Role)
		return in, nil
	}

	formValue := func(key string) *string {
		v, ok := c.GetPostForm(key)
		if !ok {
			return nil
		}
		return nonEmpty(&v)
	}
	if id := formValue("_id"); id != nil {
		in.TargetID = *id
	}
	in.Username = formValue("username")
	in.Title = formValue("title")
	in.Role = formValue("role")

	header, err := c.FormFile("avatar")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return in, nil
		}
		return in, errors.New("Invalid avatar upload")
	}
	file, err := header.Open()
	if err != nil {
		return in, errors.New("Invalid avatar upload")
	}
	in.Avatar = &storage.Object{
		Field:       "avatar",
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return in, nil
}

func nonEmpty(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}
