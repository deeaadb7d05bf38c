package controller

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"moim/cache"
	"moim/models"
	"moim/services"
	"moim/utils"
)

type CheckInRequest struct {
	Comment string `json:"comment" validate:"omitempty,max=500"`
}

type AttendanceController struct {
	DB      *gorm.DB
	Service *services.AttendanceService
	Cache   cache.Store
	Logger  *log.Logger
}

func NewAttendanceController(db *gorm.DB, service *services.AttendanceService, store cache.Store, logger *log.Logger) *AttendanceController {
	return &AttendanceController{
		DB:      db,
		Service: service,
		Cache:   store,
		Logger:  logger,
	}
}

func (ac *AttendanceController) CheckIn(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}

	var req CheckInRequest
	if len(c.Body()) > 0 {
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
	}

	userID, _ := c.Locals("userID").(uint)
	attendance, err := ac.Service.CheckIn(c.Context(), userID, studyID, req.Comment)
	if err != nil {
		return fail(c, err)
	}

	// The day's roster and stats just changed
	_ = ac.Cache.Delete(c.Context(),
		cache.TodayAttendanceKey(studyID),
		cache.StudyStatsKey(studyID),
	)

	return c.Status(fiber.StatusCreated).JSON(attendance)
}

// TodayAttendance caches the shared roster but never the caller-specific
// checked_in flag, which is computed per request.
func (ac *AttendanceController) TodayAttendance(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}

	userID, _ := c.Locals("userID").(uint)
	key := cache.TodayAttendanceKey(studyID)

	var entries []models.AttendanceEntry
	if err := cache.GetJSON(c.Context(), ac.Cache, key, &entries); err == nil {
		// Membership check still applies on the cached path
		if err := ac.Service.RequireMember(userID, studyID); err != nil {
			return fail(c, err)
		}
		checkedIn := false
		for _, e := range entries {
			if e.UserID == userID {
				checkedIn = true
				break
			}
		}
		return c.JSON(fiber.Map{
			"date":        utils.TodayString(),
			"attendances": entries,
			"checked_in":  checkedIn,
		})
	}

	entries, checkedIn, err := ac.Service.TodayAttendance(userID, studyID)
	if err != nil {
		return fail(c, err)
	}

	_ = cache.SetJSON(c.Context(), ac.Cache, key, entries, cache.QueryTTL)

	return c.JSON(fiber.Map{
		"date":        utils.TodayString(),
		"attendances": entries,
		"checked_in":  checkedIn,
	})
}

func (ac *AttendanceController) MyStats(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}
	userID, _ := c.Locals("userID").(uint)

	stats, err := ac.Service.UserStats(userID, studyID, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}

func (ac *AttendanceController) MemberStats(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}
	memberID, err := strconv.ParseUint(c.Params("memberId"), 10, 32)
	if err != nil || memberID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid member id",
		})
	}

	userID, _ := c.Locals("userID").(uint)
	stats, err := ac.Service.UserStats(userID, studyID, uint(memberID))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}

func (ac *AttendanceController) StudyStats(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}
	userID, _ := c.Locals("userID").(uint)
	key := cache.StudyStatsKey(studyID)

	var cached models.StudyAttendanceStats
	if err := cache.GetJSON(c.Context(), ac.Cache, key, &cached); err == nil {
		if err := ac.Service.RequireMember(userID, studyID); err != nil {
			return fail(c, err)
		}
		return c.JSON(&cached)
	}

	stats, err := ac.Service.StudyStats(userID, studyID)
	if err != nil {
		return fail(c, err)
	}

	_ = cache.SetJSON(c.Context(), ac.Cache, key, stats, cache.QueryTTL)

	return c.JSON(stats)
}

// MonthlyCalendar defaults to the current month when year/month query
// params are absent.
func (ac *AttendanceController) MonthlyCalendar(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}
	userID, _ := c.Locals("userID").(uint)

	now := time.Now().UTC()
	year := c.QueryInt("year", now.Year())
	month := c.QueryInt("month", int(now.Month()))
	if year < 2000 || year > 2200 || month < 1 || month > 12 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid year or month",
		})
	}

	targetID := userID
	if raw := c.Query("member_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid member id",
			})
		}
		targetID = uint(parsed)
	}

	calendar, err := ac.Service.MonthlyAttendance(userID, studyID, targetID, year, month)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(calendar)
}

func (ac *AttendanceController) Heatmap(c *fiber.Ctx) error {
	studyID, err := studyIDParam(c)
	if err != nil {
		return err
	}
	userID, _ := c.Locals("userID").(uint)

	targetID := userID
	if raw := c.Query("member_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid member id",
			})
		}
		targetID = uint(parsed)
	}

	cells, err := ac.Service.Heatmap(userID, studyID, targetID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"days": cells})
}
