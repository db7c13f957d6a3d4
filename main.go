package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paper-scout/config"
	"paper-scout/models"
	"paper-scout/services"
)

var (
	feedbackEventsCounter   *prometheus.CounterVec
	recommendationsCounter  prometheus.Counter
	emptyRecommendationsCtr prometheus.Counter
	catalogSizeGauge        prometheus.Gauge
)

func init() {
	feedbackEventsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_events_total",
			Help: "Total number of feedback events applied, by outcome.",
		},
		[]string{"outcome"},
	)
	recommendationsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendations_served_total",
			Help: "Total number of recommendations that resolved to a paper.",
		},
	)
	emptyRecommendationsCtr = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendations_empty_total",
			Help: "Total number of recommendation requests with no resolvable candidate.",
		},
	)
	catalogSizeGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_papers",
			Help: "Number of papers currently in the catalog.",
		},
	)
	prometheus.MustRegister(feedbackEventsCounter, recommendationsCounter,
		emptyRecommendationsCtr, catalogSizeGauge)
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.Paper{}, &models.User{}, &models.UserPaper{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Services
	catalog := services.NewCatalogService(db, logging)
	users := services.NewUserService(db, logging)
	feedback := services.NewFeedbackService(db, logging)
	scorer := services.NewPoolScorer(catalog, logging, cfg.ScorerPoolSize)
	recommender := services.NewRecommendService(users, catalog, scorer, logging)

	if err := scorer.Refresh(context.Background()); err != nil {
		// Ohne Pool laufen Empfehlungen leer, der Server startet trotzdem.
		logging.Warn("Initial scorer pool refresh failed", zap.Error(err))
	}
	refreshCatalogGauge(context.Background(), catalog)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	newRng := func() *rand.Rand {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	// Setup Routes
	setupUserRoutes(router, users, logging)
	setupCatalogRoutes(router, catalog, cfg, newRng, logging)
	setupRecommendRoutes(router, recommender, logging)
	setupFeedbackRoutes(router, feedback, logging)

	// Setup Cron: Kandidatenpool und Katalog-Gauge folgen einer parallel
	// laufenden Ingestion.
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		ctx := context.Background()
		if err := scorer.Refresh(ctx); err != nil {
			logging.Error("Scheduled scorer pool refresh failed", zap.Error(err))
		}
		refreshCatalogGauge(ctx, catalog)
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func refreshCatalogGauge(ctx context.Context, catalog *services.CatalogService) {
	if count, err := catalog.Count(ctx); err == nil {
		catalogSizeGauge.Set(float64(count))
	}
}

func setupUserRoutes(router *gin.Engine, users *services.UserService, log *zap.Logger) {
	rg := router.Group("/users")

	rg.POST("/sign-up", func(c *gin.Context) {
		var req struct {
			TgID int64 `json:"tg_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		created, err := users.SignUp(c.Request.Context(), req.TgID)
		if err != nil {
			log.Error("Sign-up failed", zap.Int64("tg_id", req.TgID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if created {
			c.JSON(http.StatusCreated, gin.H{"signed_up": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"signed_up": false, "message": "already signed"})
	})
}

func setupCatalogRoutes(router *gin.Engine, catalog *services.CatalogService, cfg *config.Config, newRng func() *rand.Rand, log *zap.Logger) {
	rg := router.Group("/papers")

	rg.GET("/by-year/:year", func(c *gin.Context) {
		year, err := strconv.Atoi(c.Param("year"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return
		}
		papers, err := catalog.FindByYear(c.Request.Context(), year)
		if err != nil {
			log.Error("Find by year failed", zap.Int("year", year), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		// Auswahl mischen, damit wiederholte Abfragen Abwechslung liefern
		c.JSON(http.StatusOK, services.ShufflePick(newRng(), papers, cfg.FindResultLimit))
	})

	rg.GET("/by-author/:name", func(c *gin.Context) {
		papers, err := catalog.FindByAuthor(c.Request.Context(), c.Param("name"))
		if err != nil {
			log.Error("Find by author failed", zap.String("name", c.Param("name")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, services.ShufflePick(newRng(), papers, cfg.FindResultLimit))
	})

	rg.GET("/hot", func(c *gin.Context) {
		limit := cfg.HotPapersLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = parsed
		}
		papers, err := catalog.HotPapers(c.Request.Context(), limit)
		if err != nil {
			log.Error("Hot papers query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, papers)
	})

	rg.GET("/:id", func(c *gin.Context) {
		paper, err := catalog.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			log.Error("Paper lookup failed", zap.String("id", c.Param("id")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if paper == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
			return
		}
		c.JSON(http.StatusOK, paper)
	})
}

func setupRecommendRoutes(router *gin.Engine, recommender *services.RecommendService, log *zap.Logger) {
	rg := router.Group("/recommend")

	rg.GET("/:tg_id", func(c *gin.Context) {
		tgID, err := strconv.ParseInt(c.Param("tg_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tg_id"})
			return
		}
		paper, err := recommender.NextPaper(c.Request.Context(), tgID)
		if err != nil {
			log.Error("Recommendation failed", zap.Int64("tg_id", tgID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
			return
		}
		if paper == nil {
			// legitimer Leerlauf, kein Fehler
			emptyRecommendationsCtr.Inc()
			c.Status(http.StatusNoContent)
			return
		}
		recommendationsCounter.Inc()
		c.JSON(http.StatusOK, paper)
	})
}

func setupFeedbackRoutes(router *gin.Engine, feedback *services.FeedbackService, log *zap.Logger) {
	router.POST("/feedback", func(c *gin.Context) {
		var req struct {
			TgID    int64  `json:"tg_id" binding:"required"`
			PaperID string `json:"paper_id" binding:"required"`
			Liked   *bool  `json:"liked" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		applied, err := feedback.Apply(c.Request.Context(), req.TgID, req.PaperID, *req.Liked)
		if err != nil {
			log.Error("Feedback failed", zap.Int64("tg_id", req.TgID),
				zap.String("paper_id", req.PaperID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
			return
		}
		if applied {
			feedbackEventsCounter.WithLabelValues("applied").Inc()
		} else {
			feedbackEventsCounter.WithLabelValues("ignored").Inc()
		}
		// Unbekannte Nutzer werden still ignoriert, der Ack bleibt gleich
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
}
