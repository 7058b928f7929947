package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"ragagent/app/agent"
	"ragagent/store"
	"ragagent/types"
)

// Turns starts one research turn and streams its events.
type Turns interface {
	Start(ctx context.Context, threadID, question string) <-chan agent.Event
}

// DefaultHeartbeat is how often an idle stream gets a comment line, so a closed
// connection is noticed while the model is still working.
const DefaultHeartbeat = 15 * time.Second

type ChatHandler struct {
	turns     Turns
	locks     *store.ThreadLocks
	heartbeat time.Duration
	logger    *slog.Logger
}

func NewChatHandler(turns Turns, locks *store.ThreadLocks) *ChatHandler {
	return &ChatHandler{
		turns:     turns,
		locks:     locks,
		heartbeat: DefaultHeartbeat,
		logger:    slog.Default(),
	}
}

// HandleChat answers POST /chat with a server-sent event stream. A thread that already
// has a turn in flight is rejected with 409 before any stream begins.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}
	question := strings.TrimSpace(params.Question)
	if question == "" {
		return NewValidationError(map[string]string{"Question": "must not be blank"})
	}

	threadID := uuid.NewString()
	if params.ThreadID != nil && strings.TrimSpace(*params.ThreadID) != "" {
		threadID = strings.TrimSpace(*params.ThreadID)
	}

	release, ok := h.locks.TryLock(threadID)
	if !ok {
		return ErrThreadBusy(threadID)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	logger := h.logger
	turns := h.turns
	heartbeat := h.heartbeat
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer release()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events := turns.Start(ctx, threadID, question)
		n, err := writeEvents(w, events, heartbeat)
		if err != nil {
			logger.Info("client went away", "thread", threadID, "events", n, "err", err)
		}
		// the controller stops on cancel; drain so it can close the channel
		cancel()
		for range events {
		}
	})
	return nil
}

// writeEvents copies events to w until the channel closes or a write fails.
// While no event arrives a ": ping" comment is written every heartbeat.
func writeEvents(w *bufio.Writer, events <-chan agent.Event, heartbeat time.Duration) (int, error) {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return n, nil
			}
			if err := writeEvent(w, ev); err != nil {
				return n, err
			}
			n++
			ticker.Reset(heartbeat)
		case <-ticker.C:
			if _, err := w.WriteString(": ping\n\n"); err != nil {
				return n, err
			}
			if err := w.Flush(); err != nil {
				return n, err
			}
		}
	}
}

func writeEvent(w *bufio.Writer, ev agent.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	return w.Flush()
}
