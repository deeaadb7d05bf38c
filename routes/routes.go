package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"moim/cache"
	controller "moim/controllers"
	"moim/feed"
	"moim/middleware"
	"moim/services"
	"moim/utils"
)

// Deps carries the shared infrastructure the route tree needs.
type Deps struct {
	Store    cache.Store
	Sessions *cache.Sessions
	Feed     feed.Publisher
	LiveFeed *feed.RedisFeed // nil when redis is not configured
	Mailer   *utils.Mailer
	Logger   *logrus.Logger
}

func SetupAuthRoutes(app *fiber.App, db *gorm.DB, deps Deps) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)
	authController := controller.NewAuthController(db, deps.Sessions, deps.Mailer, authLogger)

	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Guards attach per route; an empty-prefix group would mount them as
	// middleware on every /auth path.
	guestOnly := middleware.GuestOnly()
	auth.Post("/register", guestOnly, authController.Register)
	auth.Post("/login", guestOnly, authController.Login)
	auth.Post("/forgot-password", guestOnly, authController.ForgotPassword)
	auth.Post("/reset-password", guestOnly, authController.ResetPassword)

	auth.Post("/verify-email", authController.VerifyEmail)
	auth.Post("/resend-verification", authController.ResendVerification)
	auth.Post("/refresh", authController.RefreshToken)

	auth.Get("/google", authController.GoogleOAuth)
	auth.Get("/google/callback", authController.GoogleOAuthCallback)

	protected := middleware.Protected(deps.Sessions)
	auth.Post("/logout", protected, authController.Logout)
	auth.Post("/change-password", protected, authController.ChangePassword)
	auth.Get("/me", protected, authController.GetCurrentUser)
	auth.Put("/me", protected, authController.UpdateProfile)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, deps Deps) {
	studyService := services.NewStudyService(db, log.New(os.Stdout, "STUDY: ", log.LstdFlags))
	attendanceService := services.NewAttendanceService(db, deps.Feed, log.New(os.Stdout, "ATTENDANCE: ", log.LstdFlags))
	communityService := services.NewCommunityService(db, deps.Feed, log.New(os.Stdout, "COMMUNITY: ", log.LstdFlags))

	studyController := controller.NewStudyController(db, studyService, deps.Store, log.New(os.Stdout, "STUDY: ", log.LstdFlags))
	attendanceController := controller.NewAttendanceController(db, attendanceService, deps.Store, log.New(os.Stdout, "ATTENDANCE: ", log.LstdFlags))
	communityController := controller.NewCommunityController(db, communityService, deps.Store, log.New(os.Stdout, "COMMUNITY: ", log.LstdFlags))

	api := app.Group("/api/v1", middleware.Protected(deps.Sessions), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Study lifecycle
	study := api.Group("/studies")
	study.Post("/", studyController.CreateStudy)
	study.Get("/", studyController.MyStudies)
	study.Post("/join", studyController.JoinStudy)
	study.Get("/:id", studyController.GetStudy)
	study.Put("/:id", studyController.UpdateStudy)
	study.Delete("/:id", studyController.DeleteStudy)
	study.Post("/:id/leave", studyController.LeaveStudy)
	study.Post("/:id/regenerate-code", studyController.RegenerateCode)

	// Attendance
	study.Post("/:id/check-in", middleware.CheckInRateLimiter(deps.Logger), attendanceController.CheckIn)
	study.Get("/:id/attendance/today", attendanceController.TodayAttendance)
	study.Get("/:id/attendance/stats", attendanceController.StudyStats)
	study.Get("/:id/attendance/me", attendanceController.MyStats)
	study.Get("/:id/attendance/members/:memberId", attendanceController.MemberStats)
	study.Get("/:id/attendance/calendar", attendanceController.MonthlyCalendar)
	study.Get("/:id/attendance/heatmap", attendanceController.Heatmap)

	// Community
	study.Post("/:id/comments", communityController.AddComment)
	study.Get("/:id/comments", communityController.DailyComments)
	study.Put("/:id/comments/:commentId", communityController.UpdateComment)
	study.Delete("/:id/comments/:commentId", communityController.DeleteComment)

	study.Post("/:id/announcements", communityController.CreateAnnouncement)
	study.Get("/:id/announcements", communityController.Announcements)
	study.Put("/:id/announcements/:announcementId", communityController.UpdateAnnouncement)
	study.Put("/:id/announcements/:announcementId/pin", communityController.PinAnnouncement)
	study.Delete("/:id/announcements/:announcementId", communityController.DeleteAnnouncement)

	// Live change feed over websocket, only when redis is available
	if deps.LiveFeed != nil {
		feedController := controller.NewFeedController(deps.LiveFeed, attendanceService, log.New(os.Stdout, "FEED: ", log.LstdFlags))
		study.Get("/:id/feed", feedController.Upgrade, websocket.New(feedController.Handle))
	}

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB, deps Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, db, deps)
	SetupAPIRoutes(app, db, deps)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
