package server

import (
	"errors"
	"net/http"

	"github.com/dylantheriot/bubl-backend/internal/models"
	"github.com/dylantheriot/bubl-backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// UserHandler serves user creation and the profile and board documents.
type UserHandler struct {
	server *Server
}

type createUserRequest struct {
	UUID string `json:"uuid"`
}

type boardRequest struct {
	UUID  string             `json:"uuid"`
	Items []models.BoardItem `json:"items"`
}

type bioRequest struct {
	UUID string  `json:"uuid"`
	Bio  *string `json:"bio"`
}

func (h *UserHandler) Register(e *echo.Echo) {
	e.POST("/create-user", h.create)
	e.GET("/users/board/get", h.getBoard)
	e.POST("/users/board/update", h.updateBoard)
	e.GET("/users/bio/get", h.getBio)
	e.POST("/users/bio/update", h.updateBio)
}

// create inserts an unconnected user. Creating an existing user is not an error.
func (h *UserHandler) create(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.UUID == "" {
		return badRequest("uuid is required")
	}

	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	_, err := h.server.deps.Users.Create(ctx, req.UUID)
	if errors.Is(err, repositories.ErrAlreadyExists) {
		return c.String(http.StatusOK, "Already exists")
	}
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, "Success")
}

func (h *UserHandler) getBoard(c echo.Context) error {
	userID, err := userParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	board, err := h.server.deps.Boards.Get(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, board)
}

func (h *UserHandler) updateBoard(c echo.Context) error {
	var req boardRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.UUID == "" {
		return badRequest("uuid is required")
	}
	if req.Items == nil {
		req.Items = []models.BoardItem{}
	}

	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	if _, err := h.server.deps.Boards.Replace(ctx, req.UUID, req.Items); err != nil {
		return err
	}
	return c.String(http.StatusOK, "Successfully updated items")
}

func (h *UserHandler) getBio(c echo.Context) error {
	userID, err := userParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	user, err := h.server.deps.Users.Get(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"bio": user.Bio})
}

// updateBio writes only the bio field so stored credentials are untouched.
func (h *UserHandler) updateBio(c echo.Context) error {
	var req bioRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.UUID == "" || req.Bio == nil {
		return badRequest("uuid and bio are required")
	}

	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	if err := h.server.deps.Users.UpdateProfile(ctx, req.UUID, models.ProfileUpdate{Bio: req.Bio}); err != nil {
		return err
	}
	return c.String(http.StatusOK, "Successfully updated bio")
}
