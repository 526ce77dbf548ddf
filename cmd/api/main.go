package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"schoolportal/internal/config"
	"schoolportal/internal/directory"
	"schoolportal/internal/httpmiddleware"
	"schoolportal/internal/ledger"
	"schoolportal/internal/logging"
	"schoolportal/internal/metrics"
	"schoolportal/internal/queue"
	"schoolportal/internal/recordstore"
	"schoolportal/internal/report"
	"schoolportal/internal/session"
	"schoolportal/internal/store"
)

func main() {
	cfg := config.Load()

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer closeLog()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatalw("http server failed", "err", err)
	}
}

func runHTTP(cfg config.App, logger *zap.SugaredLogger) error {
	redisClient := store.NewRedis(cfg.RedisAddr)

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Warnw("db not reachable, admin summary disabled", "err", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	// Service credential for record store calls, read once at start.
	var svc session.Session
	if cfg.TokenRedisKey != "" {
		svc = session.LoadRedis(context.Background(), redisClient.Client, cfg.TokenRedisKey)
	} else {
		svc = session.Load(cfg.TokenPath)
	}
	if _, ok := svc.Credential(); !ok {
		logger.Warn("no persisted record store token; privileged calls will be rejected upstream")
	}

	client := recordstore.New(cfg.RecordStoreURL, cfg.RecordStoreTimeout)
	students := directory.New(client, svc, logger)
	payments := ledger.New(client, svc, logger)

	if cfg.InvalidateOnWrite {
		var q queue.Queue
		if cfg.QueueBackend == "memory" {
			q = queue.NewInMemory(64)
		} else {
			q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		}
		pub := &queue.Publisher{Q: q, Log: logger}
		students.Notifier = pub
		payments.Notifier = pub
	}

	var reports *report.Repository
	if db != nil {
		reports = report.NewRepository(db.Client)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": db != nil})
	})

	admin := r.Group("/v1", session.Require(session.RoleAdmin))

	admin.GET("/students", func(c *gin.Context) {
		if err := students.Refresh(c.Request.Context()); err != nil {
			// Stale data is better than none once the cache was populated.
			if students.State() != directory.StatePopulated {
				writeError(c, err)
				return
			}
			logger.Warnw("serving stale student list", "err", err)
		}
		c.JSON(http.StatusOK, gin.H{"students": students.Students()})
	})

	admin.POST("/students", func(c *gin.Context) {
		var req struct {
			FirstName  string  `json:"first_name"`
			LastName   string  `json:"last_name"`
			Email      string  `json:"email"`
			Phase      string  `json:"phase"`
			CourseName string  `json:"course_name"`
			Password   string  `json:"password"`
			TotalFee   float64 `json:"total_fee"`
			AmountPaid float64 `json:"amount_paid"`
			Status     string  `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		created, err := students.Create(c.Request.Context(), directory.CreateInput{
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Email:      req.Email,
			Phase:      req.Phase,
			CourseName: req.CourseName,
			Password:   req.Password,
			TotalFee:   req.TotalFee,
			AmountPaid: req.AmountPaid,
			Active:     req.Status != "inactive",
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	admin.PATCH("/students/:id", func(c *gin.Context) {
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		delete(patch, "id")
		updated, err := students.Update(c.Request.Context(), recordstore.ID(c.Param("id")), patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	})

	admin.PATCH("/students/:id/activate", toggleHandler(students, true))
	admin.PATCH("/students/:id/deactivate", toggleHandler(students, false))

	admin.DELETE("/students/:id", func(c *gin.Context) {
		if err := students.Delete(c.Request.Context(), recordstore.ID(c.Param("id"))); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	admin.GET("/payments", func(c *gin.Context) {
		if err := payments.Refresh(c.Request.Context()); err != nil {
			if !payments.Loaded() {
				writeError(c, err)
				return
			}
			logger.Warnw("serving stale payment list", "err", err)
		}
		c.JSON(http.StatusOK, gin.H{"payments": paymentRows(payments.Records())})
	})

	admin.POST("/payments", func(c *gin.Context) {
		var req paymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		created, err := payments.Create(c.Request.Context(), req.input())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, paymentRow(created))
	})

	admin.PATCH("/payments/:id", func(c *gin.Context) {
		var req paymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updated, err := payments.Update(c.Request.Context(), recordstore.ID(c.Param("id")), req.input())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, paymentRow(updated))
	})

	admin.DELETE("/payments/:id", func(c *gin.Context) {
		if err := payments.Delete(c.Request.Context(), recordstore.ID(c.Param("id"))); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	admin.GET("/admin/summary", func(c *gin.Context) {
		if reports != nil {
			if latest, err := reports.Latest(c.Request.Context()); err == nil && latest != nil {
				c.JSON(http.StatusOK, latest)
				return
			} else if err != nil {
				logger.Warnw("snapshot lookup failed, computing live", "err", err)
			}
		}
		cred, _ := svc.Credential()
		list, err := client.ListStudents(c.Request.Context(), cred)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report.Summarize(list))
	})

	student := r.Group("/v1/me", session.Require(session.RoleStudent))

	student.GET("/balance", func(c *gin.Context) {
		rec, err := ownRecord(c, client, svc)
		if err != nil {
			writeError(c, err)
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no record for this account"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"student_name":       rec.FullName(),
			"total_fees":         rec.TotalFee,
			"paid_amount":        rec.AmountPaid,
			"outstanding_amount": rec.Outstanding(),
		})
	})

	student.GET("/phase", func(c *gin.Context) {
		rec, err := ownRecord(c, client, svc)
		if err != nil {
			writeError(c, err)
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no record for this account"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"current_phase": rec.Phase.Current(),
			"completed":     rec.Phase.Labels,
			"course_name":   rec.CourseName,
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infow("starting portal server", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server error", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("forced shutdown", "err", err)
	}
	logger.Info("server exited")
	return nil
}

type paymentRequest struct {
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	TotalFee   float64 `json:"total_fee"`
	AmountPaid float64 `json:"amount_paid"`
}

func (r paymentRequest) input() ledger.PaymentInput {
	return ledger.PaymentInput{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		TotalFee:   r.TotalFee,
		AmountPaid: r.AmountPaid,
	}
}

// paymentRow serializes one ledger record with its balance recomputed at
// the display point.
func paymentRow(rec ledger.Record) gin.H {
	return gin.H{
		"id":                  rec.ID,
		"first_name":          rec.FirstName,
		"last_name":           rec.LastName,
		"total_fee":           rec.TotalFee,
		"amount_paid":         rec.AmountPaid,
		"outstanding_balance": rec.Outstanding(),
	}
}

func paymentRows(recs []ledger.Record) []gin.H {
	rows := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, paymentRow(rec))
	}
	return rows
}

// toggleHandler picks activate/deactivate from the route, but the cache
// still issues the call chosen from its locally known flag.
func toggleHandler(students *directory.Cache, activate bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := recordstore.ID(c.Param("id"))
		if err := students.ToggleStatus(c.Request.Context(), id, !activate); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "isActive": activate})
	}
}

// ownRecord finds the authenticated student's record by the token's email
// claim. It reads the store directly so the student always sees fresh fee
// figures rather than an admin view's cached copy.
func ownRecord(c *gin.Context, client *recordstore.Client, svc session.Session) (*recordstore.Student, error) {
	email := session.FromContext(c).Email()
	if email == "" {
		return nil, nil
	}
	cred, _ := svc.Credential()
	list, err := client.ListStudents(c.Request.Context(), cred)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Email == email {
			return &list[i], nil
		}
	}
	return nil, nil
}

// writeError maps the error taxonomy onto portal responses: validation
// failures are the caller's fault, authorization rejections keep the
// store's status, and other transport failures read as a bad gateway.
func writeError(c *gin.Context, err error) {
	if recordstore.IsValidation(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if te, ok := recordstore.AsTransport(err); ok {
		if te.IsAuthorization() {
			c.JSON(te.Status, gin.H{"error": te.Message})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": te.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
