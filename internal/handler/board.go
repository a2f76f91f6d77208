package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"realtime-backend/internal/auth"
	"realtime-backend/internal/eventstore"
)

// BoardHandler serves the REST board-management surface: list, create, and
// delete boards the authenticated user owns.
type BoardHandler struct {
	store *eventstore.Store
}

// NewBoardHandler builds a BoardHandler backed by store.
func NewBoardHandler(store *eventstore.Store) *BoardHandler {
	return &BoardHandler{store: store}
}

type createBoardRequest struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
}

type boardResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	IsPrivate bool   `json:"isPrivate"`
	CreatedAt string `json:"createdAt"`
}

// List handles GET /api/boards: every board owned by the caller.
func (h *BoardHandler) List(c *fiber.Ctx) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"code": "UNAUTHORIZED"})
	}

	boards, err := h.store.GetUserBoards(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"code": "INTERNAL", "message": err.Error()})
	}

	out := make([]boardResponse, 0, len(boards))
	for _, b := range boards {
		out = append(out, boardResponse{
			ID:        b.ID,
			Name:      b.Name,
			OwnerID:   b.OwnerID,
			IsPrivate: b.IsPrivate,
			CreatedAt: b.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
	return c.JSON(fiber.Map{"boards": out})
}

// Create handles POST /api/boards.
func (h *BoardHandler) Create(c *fiber.Ctx) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"code": "UNAUTHORIZED"})
	}

	var req createBoardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"code": "INVALID_BODY"})
	}

	board, err := h.store.CreateBoard(uuid.NewString(), req.Name, userID, req.IsPrivate)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"code": "INTERNAL", "message": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(boardResponse{
		ID:        board.ID,
		Name:      board.Name,
		OwnerID:   board.OwnerID,
		IsPrivate: board.IsPrivate,
		CreatedAt: board.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}

// Delete handles DELETE /api/boards/:id. Only the owner may delete.
func (h *BoardHandler) Delete(c *fiber.Ctx) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"code": "UNAUTHORIZED"})
	}

	boardID := c.Params("id")
	deleted, err := h.store.DeleteBoard(boardID, userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"code": "INTERNAL", "message": err.Error()})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"code": "NOT_FOUND"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
