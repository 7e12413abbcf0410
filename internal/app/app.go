package app

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/controller"
	"ai_tutor_backend/internal/middleware"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/pkg/database"
	"ai_tutor_backend/pkg/logger"
	"ai_tutor_backend/pkg/monitoring"
	"ai_tutor_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB // 演示模式下为nil
	Redis    *redis.Client
	services *services
}

// stores 服务层依赖的存储集合。MySQL可达时是GORM仓库，
// 否则退化为内存实现（演示模式），聊天照常可用但数据不持久。
type stores struct {
	users         service.UserStore
	conversations service.ConversationStore
	ledger        service.ProgressLedger
	reminders     service.ReminderStore
	activity      middleware.UserActivityStore
}

type services struct {
	auth      *service.AuthService
	user      *service.UserService
	generate  *service.GenerationService
	signals   *service.SignalService
	chat      *service.ChatService
	progress  *service.ProgressService
	analytics *service.AnalyticsService
	report    *service.ReportService
	reminder  *service.ReminderService
}

type controllers struct {
	auth     *controller.AuthController
	user     *controller.UserController
	chat     *controller.ChatController
	progress *controller.ProgressController
	report   *controller.ReportController
	reminder *controller.ReminderController
	health   *controller.HealthController
}

func initStores(db *gorm.DB) *stores {
	if db == nil {
		mem := repository.NewMemoryStore()
		return &stores{
			users:         mem.Users,
			conversations: mem.Conversations,
			ledger:        mem.Ledger,
			reminders:     mem.Reminders,
			activity:      mem.Users,
		}
	}

	users := repository.NewUserRepository(db)
	return &stores{
		users:         users,
		conversations: repository.NewConversationRepository(db),
		ledger:        repository.NewProgressRepository(db),
		reminders:     repository.NewReminderRepository(db),
		activity:      users,
	}
}

func initServices(st *stores, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.generate = service.NewGenerationService(cfg.AI)
	s.signals = service.NewSignalService(s.generate)
	s.auth = service.NewAuthService(st.users, cfg.JWT)
	s.user = service.NewUserService(st.users)
	s.chat = service.NewChatService(st.conversations, st.ledger, s.generate, s.signals, cfg.Chat)
	s.progress = service.NewProgressService(st.ledger)
	s.analytics = service.NewAnalyticsService(st.ledger, st.conversations)
	s.report = service.NewReportService(s.analytics, st.users, st.reminders, s.generate, rdb)
	s.reminder = service.NewReminderService(st.reminders)

	return s
}

func initControllers(s *services, cfg *config.Config, db *gorm.DB) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.auth),
		user:     controller.NewUserController(s.user),
		chat:     controller.NewChatController(s.chat, s.user, s.report),
		progress: controller.NewProgressController(s.progress, s.analytics, cfg.Analytics.DefaultWindowDays),
		report:   controller.NewReportController(s.report, cfg.Analytics.DefaultWindowDays),
		reminder: controller.NewReminderController(s.reminder),
		health:   controller.NewHealthController(db, s.generate),
	}
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg.Server.Mode)

	logger.Log.Info("Logger initialized successfully")

	// MySQL不可达时降级为演示模式，不阻止启动
	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Warn("Database unavailable, starting in demo mode (in-memory store)", zap.Error(err))
		db = nil
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, insight cache disabled", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	st := initStores(db)
	services := initServices(st, cfg, rdb)
	app.services = services
	controllers := initControllers(services, cfg, db)

	monitoring.Init()

	gin.SetMode(ginMode(cfg.Server.Mode))
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("ai-tutor", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, st, cfg)

	services.reminder.StartScanner(cfg.Reminder.ScanIntervalMinutes)
	services.chat.StartSweeper()

	return app
}

func ginMode(mode string) string {
	switch mode {
	case "release":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	a.services.reminder.StopScanner()
	a.services.chat.StopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
