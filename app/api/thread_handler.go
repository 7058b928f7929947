package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"ragagent/store"
	"ragagent/types"
)

type ThreadHandler struct {
	sessions store.SessionStorer
	locks    *store.ThreadLocks
}

func NewThreadHandler(sessions store.SessionStorer, locks *store.ThreadLocks) *ThreadHandler {
	return &ThreadHandler{
		sessions: sessions,
		locks:    locks,
	}
}

// HandleDelete clears a thread's persisted state. A thread with a turn in flight is not touched.
func (h *ThreadHandler) HandleDelete(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return ErrInvalidID()
	}
	id = strings.Clone(id)

	release, ok := h.locks.TryLock(id)
	if !ok {
		return ErrThreadBusy(id)
	}
	defer release()

	if err := h.sessions.Delete(c.UserContext(), id); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return ErrNotFound(id, "thread")
		}
		return err
	}
	return c.JSON(fiber.Map{"deleted": id})
}
