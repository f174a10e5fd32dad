package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/vantage-solutions/ms-go-accounts/app/dto"
	"github.com/vantage-solutions/ms-go-accounts/app/entity"
	"github.com/vantage-solutions/ms-go-accounts/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type userFlow interface {
	Profile(ctx context.Context, userID uint64) (*entity.User, error)
	UpdateProfile(ctx context.Context, userID uint64, username, email string) (*entity.User, error)
	ListUsers(ctx context.Context) ([]*entity.User, error)
	GetUser(ctx context.Context, id uint64) (*entity.User, error)
	UpdateRole(ctx context.Context, id uint64, role string) (*entity.User, error)
	DeleteUser(ctx context.Context, id uint64) error
}

type UserController struct {
	userService userFlow
}

func NewUserController(userService userFlow) *UserController {
	return &UserController{userService: userService}
}

func (c *UserController) Profile(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		logrus.Warn("Profile failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "unauthorized"})
	}

	user, err := c.userService.Profile(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.WithField("user_id", userID).Warn("Profile failed: user not found")
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "user not found"})
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Profile failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.NewUserProfile(user))
}

func (c *UserController) UpdateProfile(ctx echo.Context) error {
	var req dto.UpdateProfileRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind update profile request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		logrus.Debug("Update profile validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	}

	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		logrus.Warn("Update profile failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "unauthorized"})
	}

	logrus.WithField("user_id", userID).Info("Update profile request received")
	user, err := c.userService.UpdateProfile(ctx.Request().Context(), userID, req.Username, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			logrus.WithField("user_id", userID).Warn("Update profile failed: user not found")
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "user not found"})
		case errors.Is(err, service.ErrUserExists):
			logrus.WithField("user_id", userID).Warn("Update profile failed: username or email in use")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "username or email already in use"})
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Update profile failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	logrus.WithField("user_id", userID).Info("Profile updated")
	return ctx.JSON(http.StatusOK, dto.ProfileResponse{
		Message: "profile updated successfully",
		User:    dto.NewUserProfile(user),
	})
}

func (c *UserController) List(ctx echo.Context) error {
	users, err := c.userService.ListUsers(ctx.Request().Context())
	if err != nil {
		logrus.WithError(err).Error("List users failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	profiles := make([]dto.UserProfile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, dto.NewUserProfile(user))
	}

	return ctx.JSON(http.StatusOK, dto.ListUsersResponse{
		Total: len(profiles),
		Users: profiles,
	})
}

func (c *UserController) Get(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid user id"})
	}

	user, err := c.userService.GetUser(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "user not found"})
		}
		logrus.WithError(err).WithField("user_id", id).Error("Get user failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.NewUserProfile(user))
}

func (c *UserController) UpdateRole(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid user id"})
	}

	var req dto.UpdateRoleRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind update role request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		logrus.Debug("Update role validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	}

	logrus.WithFields(logrus.Fields{"user_id": id, "role": req.Role}).Info("Update role request received")
	user, err := c.userService.UpdateRole(ctx.Request().Context(), id, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			logrus.WithField("user_id", id).Warn("Update role failed: user not found")
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "user not found"})
		case errors.Is(err, service.ErrInvalidRole):
			logrus.WithField("user_id", id).Warn("Update role failed: invalid role")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "role must be user or admin"})
		}
		logrus.WithError(err).WithField("user_id", id).Error("Update role failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{"user_id": id, "role": user.Role}).Info("Role updated")
	return ctx.JSON(http.StatusOK, dto.ProfileResponse{
		Message: "role updated successfully",
		User:    dto.NewUserProfile(user),
	})
}

func (c *UserController) Delete(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "invalid user id"})
	}

	logrus.WithField("user_id", id).Info("Delete user request received")
	if err := c.userService.DeleteUser(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.WithField("user_id", id).Warn("Delete user failed: user not found")
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "user not found"})
		}
		logrus.WithError(err).WithField("user_id", id).Error("Delete user failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "internal server error"})
	}

	logrus.WithField("user_id", id).Info("User deleted")
	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "user deleted successfully"})
}

func parseIDParam(ctx echo.Context) (uint64, error) {
	return strconv.ParseUint(ctx.Param("id"), 10, 64)
}
