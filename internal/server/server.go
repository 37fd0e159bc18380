package server

import (
	"log"

	"cloud.google.com/go/firestore"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mansoorceksport/nutritico/internal/config"
	"github.com/mansoorceksport/nutritico/internal/domain"
	"github.com/mansoorceksport/nutritico/internal/handler"
	"github.com/mansoorceksport/nutritico/internal/middleware"
	"github.com/mansoorceksport/nutritico/internal/repository"
	"github.com/mansoorceksport/nutritico/internal/service"
	"github.com/mansoorceksport/nutritico/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	MongoDB     *mongo.Database
	RedisClient *redis.Client
	AuthClient  service.FirebaseAuthClient

	// Firestore is required when the state backend is firestore
	Firestore *firestore.Client
	// Transport overrides the OpenRouter client (tests)
	Transport domain.LLMTransport
	// LabelTransport overrides the vision client; defaults to Transport
	LabelTransport domain.LLMTransport
	// FileRepo stores label photos; nil disables archiving
	FileRepo domain.FileRepository
}

// NewApp creates and configures the Fiber application with the given dependencies.
// The background state sync is flushed when the app shuts down.
func NewApp(deps AppDependencies) *fiber.App {
	cfg := deps.Config

	// Initialize repositories
	var stateRepo domain.StateRepository
	switch {
	case cfg.State.Backend == config.StateBackendFirestore && deps.Firestore != nil:
		stateRepo = repository.NewFirestoreStateRepository(deps.Firestore, cfg.State.FirestoreCollection)
	default:
		if cfg.State.Backend == config.StateBackendFirestore {
			log.Println("Warning: firestore backend selected without a client, falling back to MongoDB")
		}
		stateRepo = repository.NewMongoStateRepository(deps.MongoDB)
	}
	consultationRepo := repository.NewMongoConsultationRepository(deps.MongoDB)

	var stateCache domain.StateCache
	if deps.RedisClient != nil {
		stateCache = repository.NewRedisCacheRepository(deps.RedisClient)
	}

	// Initialize LLM transports
	transport := deps.Transport
	if transport == nil {
		transport = service.NewOpenRouterTransport(cfg.OpenRouter.APIKey, cfg.OpenRouter.Model, cfg.OpenRouter.BaseURL)
	}
	labelTransport := deps.LabelTransport
	if labelTransport == nil {
		if deps.Transport != nil {
			labelTransport = deps.Transport
		} else {
			labelTransport = service.NewOpenRouterTransport(cfg.OpenRouter.APIKey, cfg.OpenRouter.VisionModel, cfg.OpenRouter.BaseURL)
		}
	}

	// Initialize services
	metrics := telemetry.NewMetrics()
	gateway := service.NewAssistantGateway(transport, metrics)
	stateService := service.NewStateService(stateRepo, stateCache, consultationRepo, gateway, metrics)
	stateService.SetCacheTTL(cfg.State.CacheTTL)
	stateService.SetSessionIdleTTL(cfg.State.SessionIdleTTL)
	dashboardService := service.NewDashboardService(stateService)
	labelService := service.NewFoodLabelService(labelTransport, deps.FileRepo, metrics)
	authService := service.NewAuthService(deps.AuthClient, cfg.JWT)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	stateHandler := handler.NewStateHandler(stateService, dashboardService)
	planHandler := handler.NewPlanHandler(stateService)
	fastingHandler := handler.NewFastingHandler(stateService)
	assistantHandler := handler.NewAssistantHandler(stateService)
	foodHandler := handler.NewFoodHandler(stateService, labelService, cfg.Server.MaxUploadSizeMB)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "NutriTico API",
		BodyLimit:    int(cfg.Server.MaxUploadSizeMB * 1024 * 1024 * 2),
		ErrorHandler: customErrorHandler,
		UnescapePath: true, // meal names such as "Media mañana" travel percent-encoded
	})

	app.Hooks().OnShutdown(func() error {
		stateService.Close()
		log.Println("✅ Pending state synced")
		return nil
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))
	if cfg.OTEL.Enabled {
		app.Use(telemetry.FiberMiddleware())
	}

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "nutritico",
		})
	})

	// API v1 routes
	v1 := app.Group("/v1")

	// Auth endpoints (public)
	auth := v1.Group("/auth")
	auth.Post("/login", authHandler.Login)

	// ===========================================
	// USER API - /v1/me/*
	// ===========================================
	me := v1.Group("/me")
	me.Use(middleware.VerifySessionToken(cfg.JWT.Secret))
	if deps.RedisClient != nil {
		me.Use(middleware.IdempotencyMiddleware(deps.RedisClient, cfg.Server.IdempotencyTTL))
	}

	me.Get("/state", stateHandler.GetState)
	me.Delete("/state", stateHandler.ResetState)
	me.Post("/sync", stateHandler.Sync)
	me.Get("/dashboard", stateHandler.GetDashboard)
	me.Post("/onboarding/complete", stateHandler.CompleteOnboarding)
	me.Patch("/profile", stateHandler.UpdateProfile)
	me.Put("/training-intensity", stateHandler.SetTrainingIntensity)
	me.Get("/targets", stateHandler.GetTargets)
	me.Post("/weight", stateHandler.LogWeight)
	me.Post("/water", stateHandler.AddWater)
	me.Post("/consumption", stateHandler.LogConsumption)

	meals := me.Group("/meals")
	meals.Post("/", stateHandler.AddMeal)
	meals.Post("/reorder", stateHandler.ReorderMeal)
	meals.Put("/:name", stateHandler.UpdateMeal)
	meals.Delete("/:name", stateHandler.RemoveMeal)

	plan := me.Group("/plan")
	plan.Get("/", planHandler.GetPlan)
	plan.Put("/", planHandler.ReplacePlan)
	plan.Put("/days/:day/meals/:meal/groups/:group/items/:item", planHandler.UpdateItem)
	plan.Post("/commands", planHandler.ApplyCommands)
	plan.Get("/days/:day/summary", planHandler.DaySummary)

	fasting := me.Group("/fasting")
	fasting.Get("/", fastingHandler.GetStatus)
	fasting.Post("/start", fastingHandler.Start)
	fasting.Post("/stop", fastingHandler.Stop)
	fasting.Put("/target", fastingHandler.UpdateTarget)

	assistant := me.Group("/assistant")
	assistant.Post("/consult", assistantHandler.Consult)
	assistant.Get("/history", assistantHandler.History)

	foods := me.Group("/foods")
	foods.Get("/", foodHandler.ListFoods)
	foods.Post("/", foodHandler.AddFood)
	foods.Post("/scan", foodHandler.ScanFood)
	foods.Post("/analyze", foodHandler.AnalyzeLabel)

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	log.Printf("Error: %v", err)
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
