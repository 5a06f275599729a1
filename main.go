package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"progression-service/config"
	"progression-service/handlers"
	"progression-service/middleware"
	"progression-service/models"
	"progression-service/services"
	"progression-service/utils"
	"progression-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration: ", err)
	}

	app := fiber.New(fiber.Config{})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.UserProgress{},
		&models.LevelDefinition{},
		&models.Path{},
		&models.UserPath{},
		&models.AdjustmentLog{},
		&models.LeaderboardEntry{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	levelService := services.NewLevelService(db)
	pathService := services.NewPathService(db)
	accrualService := services.NewAccrualService(db, levelService, cfg.LazyCreateProgress)
	trackerService := services.NewPathTrackerService(db, pathService)
	leaderboardService := services.NewLeaderboardService(db, pathService)
	adjustmentService := services.NewAdjustmentService(db, accrualService)

	if err := levelService.LoadCache(); err != nil {
		log.Fatal("failed to warm level cache:", err)
	}
	if err := pathService.LoadCache(); err != nil {
		log.Fatal("failed to warm path cache:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	leaderboardService.StartRefreshScheduler(cfg.LeaderboardRefreshInterval)

	if cfg.AuditArchive.Enabled {
		r2, err := utils.NewR2Client(
			cfg.AuditArchive.AccountID,
			cfg.AuditArchive.AccessKeyID,
			cfg.AuditArchive.AccessKeySecret,
			cfg.AuditArchive.Bucket,
			cfg.AuditArchive.CDNBaseURL,
		)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		archiveClient := workers.NewAuditArchiveClient(db, r2, cfg.AuditArchive)
		go workers.PollAdjustments(ctx, archiveClient, cfg.AuditArchive.Interval)
	}

	// ✅ Setup routes — enforced Gateway auth on everything
	handlers.SetupProgressionRoutes(app, accrualService, trackerService)
	handlers.SetupPathRoutes(app, pathService, trackerService)
	handlers.SetupLeaderboardRoutes(app, leaderboardService)
	handlers.SetupAdminRoutes(app, adjustmentService, levelService, pathService, leaderboardService)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on %s", cfg.ListenAddr)
	log.Printf("✅ Leaderboard refresh every %s", cfg.LeaderboardRefreshInterval)
	log.Printf("✅ Audit archive enabled: %t", cfg.AuditArchive.Enabled)
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
