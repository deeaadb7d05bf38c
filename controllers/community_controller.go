package controller

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"moim/cache"
	"moim/models"
	"moim/services"
	"moim/utils"
)

type AddCommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
	Date    string `json:"date" validate:"omitempty,dateymd"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type CreateAnnouncementRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content" validate:"omitempty,max=5000"`
	IsPinned bool   `json:"is_pinned"`
}

type UpdateAnnouncementRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"omitempty,max=5000"`
}

type PinAnnouncementRequest struct {
	Pinned bool `json:"pinned"`
}

type CommunityController struct {
	DB      *gorm.DB
	Service *services.CommunityService
	Cache   cache.Store
	Logger  *log.Logger
}

func NewCommunityController(db *gorm.DB, service *services.CommunityService, store cache.Store, logger *log.Logger) *CommunityController {
	return &CommunityController{
		DB:      db,
		Service: service,
		Cache:   store,
		Logger:  logger,
	}
}

func idParam(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}

func (cc *CommunityController) AddComment(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}

	var req AddCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if req.Date == "" {
		req.Date = utils.TodayString()
	}

	userID, _ := c.Locals("userID").(uint)
	comment, err := cc.Service.AddComment(c.Context(), userID, studyID, req.Date, req.Content)
	if err != nil {
		return fail(c, err)
	}

	_ = cc.Cache.Delete(c.Context(), cache.DailyCommentsKey(studyID, comment.Date))

	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DailyComments serves the thread for ?date=YYYY-MM-DD, defaulting to today.
// The comment rows are shared and cached; the caller-specific flags are
// computed per request.
func (cc *CommunityController) DailyComments(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}

	date := c.Query("date", utils.TodayString())
	if !utils.IsValidDate(date) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid date, expected YYYY-MM-DD",
		})
	}

	userID, _ := c.Locals("userID").(uint)
	if err := cc.Service.RequireMember(userID, studyID); err != nil {
		return fail(c, err)
	}

	key := cache.DailyCommentsKey(studyID, date)
	var rows []models.CommentView
	if err := cache.GetJSON(c.Context(), cc.Cache, key, &rows); err != nil {
		rows, err = cc.Service.CommentRows(studyID, date)
		if err != nil {
			return fail(c, err)
		}
		_ = cache.SetJSON(c.Context(), cc.Cache, key, rows, cache.QueryTTL)
	}

	thread, err := cc.Service.BuildThread(userID, studyID, date, rows)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(thread)
}

func (cc *CommunityController) UpdateComment(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}
	commentID, err := idParam(c, "commentId")
	if err != nil {
		return err
	}

	var req UpdateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	userID, _ := c.Locals("userID").(uint)
	if err := cc.Service.UpdateComment(userID, studyID, commentID, req.Content); err != nil {
		return fail(c, err)
	}

	_ = cc.Cache.DeletePrefix(c.Context(), cache.DailyCommentsKey(studyID, ""))

	return c.JSON(fiber.Map{"message": "Comment updated"})
}

func (cc *CommunityController) DeleteComment(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}
	commentID, err := idParam(c, "commentId")
	if err != nil {
		return err
	}

	userID, _ := c.Locals("userID").(uint)
	if err := cc.Service.DeleteComment(c.Context(), userID, studyID, commentID); err != nil {
		return fail(c, err)
	}

	_ = cc.Cache.DeletePrefix(c.Context(), cache.DailyCommentsKey(studyID, ""))

	return c.JSON(fiber.Map{"message": "Comment deleted"})
}

func (cc *CommunityController) CreateAnnouncement(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}

	var req CreateAnnouncementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	userID, _ := c.Locals("userID").(uint)
	announcement, err := cc.Service.CreateAnnouncement(c.Context(), userID, studyID, req.Title, req.Content, req.IsPinned)
	if err != nil {
		return fail(c, err)
	}

	_ = cc.Cache.Delete(c.Context(), cache.AnnouncementsKey(studyID))

	return c.Status(fiber.StatusCreated).JSON(announcement)
}

// Announcements caches the shared rows; the caller's edit rights are
// computed per request.
func (cc *CommunityController) Announcements(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}

	userID, _ := c.Locals("userID").(uint)
	if err := cc.Service.RequireMember(userID, studyID); err != nil {
		return fail(c, err)
	}

	key := cache.AnnouncementsKey(studyID)
	var rows []models.AnnouncementView
	if err := cache.GetJSON(c.Context(), cc.Cache, key, &rows); err != nil {
		rows, err = cc.Service.AnnouncementRows(studyID)
		if err != nil {
			return fail(c, err)
		}
		_ = cache.SetJSON(c.Context(), cc.Cache, key, rows, cache.QueryTTL)
	}

	list, err := cc.Service.BuildAnnouncementList(userID, studyID, rows)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(list)
}

func (cc *CommunityController) UpdateAnnouncement(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}
	announcementID, err := idParam(c, "announcementId")
	if err != nil {
		return err
	}

	var req UpdateAnnouncementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	userID, _ := c.Locals("userID").(uint)
	if err := cc.Service.UpdateAnnouncement(userID, studyID, announcementID, req.Title, req.Content); err != nil {
		return fail(c, err)
	}

	_ = cc.Cache.Delete(c.Context(), cache.AnnouncementsKey(studyID))

	return c.JSON(fiber.Map{"message": "Announcement updated"})
}

func (cc *CommunityController) PinAnnouncement(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}
	announcementID, err := idParam(c, "announcementId")
	if err != nil {
		return err
	}

	var req PinAnnouncementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	userID, _ := c.Locals("userID").(uint)
	if err := cc.Service.SetAnnouncementPin(c.Context(), userID, studyID, announcementID, req.Pinned); err != nil {
		return fail(c, err)
	}

	_ = cc.Cache.Delete(c.Context(), cache.AnnouncementsKey(studyID))

	return c.JSON(fiber.Map{"message": "Announcement pin updated"})
}

func (cc *CommunityController) DeleteAnnouncement(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}
	announcementID, err := idParam(c, "announcementId")
	if err != nil {
		return err
	}

	userID, _ := c.Locals("userID").(uint)
	if err := cc.Service.DeleteAnnouncement(userID, studyID, announcementID); err != nil {
		return fail(c, err)
	}

	_ = cc.Cache.Delete(c.Context(), cache.AnnouncementsKey(studyID))

	return c.JSON(fiber.Map{"message": "Announcement deleted"})
}
