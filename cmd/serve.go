package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sesiku/ms-go-reconciliation/app/controller"
	"github.com/sesiku/ms-go-reconciliation/app/gateway"
	"github.com/sesiku/ms-go-reconciliation/app/middleware"
	"github.com/sesiku/ms-go-reconciliation/app/notifier"
	"github.com/sesiku/ms-go-reconciliation/app/repository"
	"github.com/sesiku/ms-go-reconciliation/app/service"
	"github.com/sesiku/ms-go-reconciliation/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server handling gateway webhooks and client payment-status endpoints.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, reconcileService, cleanup := mustCreateReconcileService()
	defer cleanup()

	paymentController := controller.NewPaymentController(reconcileService)
	e := setupHTTPServer(paymentController, cfg.JWT.Secret)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(paymentController *controller.PaymentController, jwtSecret string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", paymentController.Health)

	// The webhook authenticates with its signature, not a JWT.
	e.POST("/payments/notification", paymentController.HandleGatewayNotification)

	authed := e.Group("", middleware.JWTAuth(jwtSecret))
	authed.POST("/payments/verify", paymentController.VerifyPayment)
	authed.POST("/bookings/:id/payments", paymentController.InitiatePayment)
	authed.GET("/bookings/:id/payment-status", paymentController.GetPaymentStatus)
	authed.GET("/bookings/:id/payment-logs", paymentController.ListPaymentLogs)

	return e
}

func mustCreateReconcileService() (*config.Config, *service.ReconcileService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	bookingRepo := repository.NewBookingRepository(db)
	paymentLogRepo := repository.NewPaymentLogRepository(db)
	meetingLinkRepo := repository.NewMeetingLinkRepository(db)

	midtransClient := gateway.NewClient(gateway.Config{
		BaseURL:     cfg.Midtrans.BaseURL,
		ServerKey:   cfg.Midtrans.ServerKey,
		HTTPTimeout: cfg.Midtrans.HTTPTimeout,
	})

	var paymentNotifier interface {
		PaymentConfirmed(ctx context.Context, evt *notifier.PaymentConfirmedEvent) error
		PaymentFailed(ctx context.Context, evt *notifier.PaymentFailedEvent) error
	}
	var publisher *notifier.Publisher
	if cfg.AMQP.URL != "" {
		publisher, err = notifier.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to connect to message broker")
		}
		paymentNotifier = publisher
	} else {
		paymentNotifier = notifier.NewLogNotifier(logrus.StandardLogger())
	}

	reconcileService := service.NewReconcileService(
		bookingRepo,
		paymentLogRepo,
		midtransClient,
		service.NewMeetingLinkAllocator(meetingLinkRepo),
		paymentNotifier,
		service.NewReceiptService(cfg.App.ServiceName),
		cfg.Reconcile,
		cfg.Midtrans.ServerKey,
	)

	cleanup := func() {
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close message broker connection")
			}
		}
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, reconcileService, cleanup
}
