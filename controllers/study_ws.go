package controller

import (
	"context"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"moim/feed"
	"moim/services"
)

// FeedController bridges the per-study change feed onto websockets, so a
// client watching a study sees check-ins and announcements as they land.
type FeedController struct {
	Feed       *feed.RedisFeed
	Attendance *services.AttendanceService
	Logger     *log.Logger
}

func NewFeedController(redisFeed *feed.RedisFeed, attendance *services.AttendanceService, logger *log.Logger) *FeedController {
	return &FeedController{
		Feed:       redisFeed,
		Attendance: attendance,
		Logger:     logger,
	}
}

// Upgrade gates the websocket handshake: it runs as a normal fiber handler
// behind Protected, checks membership, and stashes what the socket handler
// needs before the protocol switch.
func (fc *FeedController) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}
	userID, _ := c.Locals("userID").(uint)
	if err := fc.Attendance.RequireMember(userID, studyID); err != nil {
		return fail(c, err)
	}

	c.Locals("studyID", studyID)
	return c.Next()
}

// Handle pumps feed events to the connected client until either side goes
// away.
func (fc *FeedController) Handle(c *websocket.Conn) {
	defer c.Close()

	studyID, ok := c.Locals("studyID").(uint)
	if !ok {
		// Fall back to the route param when the upgrade handler was bypassed
		parsed, err := strconv.ParseUint(c.Params("id"), 10, 32)
		if err != nil || parsed == 0 {
			return
		}
		studyID = uint(parsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, stop := fc.Feed.Subscribe(ctx, studyID)
	defer stop()

	// Drain the read side so close frames are noticed
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			if err := c.WriteJSON(event); err != nil {
				fc.Logger.Printf("feed write to study %d watcher failed: %v", studyID, err)
				return
			}
		}
	}
}
