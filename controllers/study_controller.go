package controller

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"moim/cache"
	"moim/services"
	"moim/utils"
)

type CreateStudyRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description" validate:"omitempty,max=2000"`
	MaxMembers  int     `json:"max_members" validate:"omitempty,min=0,max=1000"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
}

type JoinStudyRequest struct {
	Code string `json:"code" validate:"required,studycode"`
}

type UpdateStudyRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	MaxMembers  *int    `json:"max_members" validate:"omitempty,min=0,max=1000"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
}

type StudyController struct {
	DB      *gorm.DB
	Service *services.StudyService
	Cache   cache.Store
	Logger  *log.Logger
}

func NewStudyController(db *gorm.DB, service *services.StudyService, store cache.Store, logger *log.Logger) *StudyController {
	return &StudyController{
		DB:      db,
		Service: service,
		Cache:   store,
		Logger:  logger,
	}
}

// studyIDParam parses the :id route parameter.
func studyIDParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid study id")
	}
	return uint(id), nil
}

func (sc *StudyController) CreateStudy(c *fiber.Ctx) error {
	var req CreateStudyRequest
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
	study, err := sc.Service.CreateStudy(userID, services.CreateStudyInput{
		Name:        req.Name,
		Description: req.Description,
		MaxMembers:  req.MaxMembers,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return fail(c, err)
	}

	_ = sc.Cache.Delete(c.Context(), cache.UserStudiesKey(userID))

	return c.Status(fiber.StatusCreated).JSON(study)
}

func (sc *StudyController) JoinStudy(c *fiber.Ctx) error {
	var req JoinStudyRequest
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
	study, err := sc.Service.JoinStudy(userID, req.Code)
	if err != nil {
		return fail(c, err)
	}

	_ = sc.Cache.Delete(c.Context(), cache.UserStudiesKey(userID))

	return c.JSON(study)
}

func (sc *StudyController) LeaveStudy(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}

	userID, _ := c.Locals("userID").(uint)
	if err := sc.Service.LeaveStudy(userID, studyID); err != nil {
		return fail(c, err)
	}

	_ = sc.Cache.Delete(c.Context(), cache.UserStudiesKey(userID))

	return c.JSON(fiber.Map{"message": "Left the study"})
}

// MyStudies serves from cache when possible; mutations on studies delete the
// caller's cached listing.
func (sc *StudyController) MyStudies(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)
	key := cache.UserStudiesKey(userID)

	var cached interface{}
	if err := cache.GetJSON(c.Context(), sc.Cache, key, &cached); err == nil {
		return c.JSON(cached)
	}

	studies, err := sc.Service.MyStudies(userID)
	if err != nil {
		return fail(c, err)
	}

	_ = cache.SetJSON(c.Context(), sc.Cache, key, studies, cache.QueryTTL)

	return c.JSON(studies)
}

func (sc *StudyController) GetStudy(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}

	userID, _ := c.Locals("userID").(uint)
	study, err := sc.Service.StudyByID(userID, studyID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(study)
}

func (sc *StudyController) UpdateStudy(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}

	var req UpdateStudyRequest
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
	study, err := sc.Service.UpdateStudy(userID, studyID, services.UpdateStudyInput{
		Name:        req.Name,
		Description: req.Description,
		MaxMembers:  req.MaxMembers,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return fail(c, err)
	}

	_ = sc.Cache.Delete(c.Context(), cache.UserStudiesKey(userID))

	return c.JSON(study)
}

func (sc *StudyController) DeleteStudy(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}

	userID, _ := c.Locals("userID").(uint)
	if err := sc.Service.DeleteStudy(userID, studyID); err != nil {
		return fail(c, err)
	}

	// Every cached view of this study is now stale
	_ = sc.Cache.Delete(c.Context(),
		cache.UserStudiesKey(userID),
		cache.TodayAttendanceKey(studyID),
		cache.AnnouncementsKey(studyID),
		cache.StudyStatsKey(studyID),
	)
	_ = sc.Cache.DeletePrefix(c.Context(), cache.DailyCommentsKey(studyID, ""))

	return c.JSON(fiber.Map{"message": "Study deleted"})
}

func (sc *StudyController) RegenerateCode(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}

	userID, _ := c.Locals("userID").(uint)
	code, err := sc.Service.RegenerateCode(userID, studyID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"code": code})
}
