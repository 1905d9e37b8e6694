package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	assignTechnicianHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/assign_technician"
	cancelBookingHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/cancel_booking"
	createBookingHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/create_booking"
	createPaymentHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/create_payment"
	createQuotationHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/create_quotation"
	creditWalletHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/credit_wallet"
	decideQuotationHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/decide_quotation"
	getBookingHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/get_booking"
	getCustomerBookingsHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/get_customer_bookings"
	getPaymentHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/get_payment"
	getStatusHistoryHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/get_status_history"
	getTechnicianBookingsHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/get_technician_bookings"
	getWalletHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/get_wallet"
	listPaymentsHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/list_payments"
	listQuotationsHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/list_quotations"
	receiveWebhookHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/receive_webhook"
	refundPaymentHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/refund_payment"
	updateBookingStatusHandler "github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers/update_booking_status"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/middleware"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/config"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/infra/cache/dedup"
	auditRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/audit"
	bookingRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/booking"
	paymentRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/payment"
	quotationRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/quotation"
	statusLogRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/statuslog"
	walletRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/wallet"
	walletTxRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/wallettransaction"
	webhookEventRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/webhookevent"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/integrations/catalogservice"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/integrations/notificationservice"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/integrations/notifier"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/integrations/omisegateway"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/integrations/stripegateway"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/integrations/userservice"
	auditService "github.com/m04kA/SMC-HomeServiceBooking/internal/service/audit"
	bookingsService "github.com/m04kA/SMC-HomeServiceBooking/internal/service/bookings"
	paymentsService "github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments"
	quotationsService "github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations"
	walletService "github.com/m04kA/SMC-HomeServiceBooking/internal/service/wallet"
	webhooksService "github.com/m04kA/SMC-HomeServiceBooking/internal/service/webhooks"
	createBookingUC "github.com/m04kA/SMC-HomeServiceBooking/internal/usecase/create_booking"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/worker/sweeper"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/dbmetrics"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/metrics"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/txmanager"
)

// notificationSender общий интерфейс драйверов уведомлений
type notificationSender interface {
	Notify(ctx context.Context, userID int64, templateKey string, payload map[string]interface{}) error
}

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	flag.Parse()

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	log, err := logger.New(cfg.Logs.File, cfg.Logs.Level)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("Starting SMC-HomeServiceBooking...")
	log.Info("Configuration loaded from %s", *configPath)

	// Инициализируем метрики (если включены). Методы *Metrics безопасны для nil.
	var metricsCollector *metrics.Metrics
	stopMetricsCh := make(chan struct{})

	if cfg.Metrics.Enabled {
		metricsCollector = metrics.New(cfg.Metrics.ServiceName)
		log.Info("Metrics enabled at %s", cfg.Metrics.Path)
	}

	// Подключаемся к базе данных
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Настраиваем connection pool
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database: %v", err)
	}
	log.Info("Successfully connected to database (host=%s, port=%d, db=%s)",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

	// Обертка нужна всегда: через нее транзакция передается в репозитории
	var wrappedDB *dbmetrics.DB
	if cfg.Metrics.Enabled {
		wrappedDB = dbmetrics.WrapWithDefault(db, metricsCollector, stopMetricsCh)
		log.Info("Database metrics collection started")
	} else {
		wrappedDB = dbmetrics.Wrap(db, nil)
	}
	txMgr := txmanager.NewTransactionManager(wrappedDB)

	// Репозитории
	bookingRepository := bookingRepo.NewRepository(wrappedDB)
	statusLogRepository := statusLogRepo.NewRepository(wrappedDB)
	auditRepository := auditRepo.NewRepository(wrappedDB)
	quotationRepository := quotationRepo.NewRepository(wrappedDB)
	walletRepository := walletRepo.NewRepository(wrappedDB)
	walletTxRepository := walletTxRepo.NewRepository(wrappedDB)
	paymentRepository := paymentRepo.NewRepository(wrappedDB)
	webhookEventRepository := webhookEventRepo.NewRepository(wrappedDB)

	// Интеграции
	catalogClient := catalogservice.NewClient(
		cfg.Catalog.URL,
		time.Duration(cfg.Catalog.Timeout)*time.Second,
		log,
	)
	log.Info("Catalog client initialized (url=%s timeout=%ds)", cfg.Catalog.URL, cfg.Catalog.Timeout)

	notify, closeNotifier := buildNotifier(cfg, log)
	defer closeNotifier()

	dedupCache := buildDedupCache(cfg, log)

	gateways := make(map[domain.PaymentMethod]paymentsService.Gateway)
	providers := make(map[string]webhooksService.Provider)

	if cfg.Gateway.Stripe.Enabled {
		stripeGw := stripegateway.New(stripegateway.Config{
			SecretKey:     cfg.Gateway.Stripe.SecretKey,
			WebhookSecret: cfg.Gateway.Stripe.WebhookSecret,
		}, log)
		gateways[domain.MethodGatewayA] = stripeGw
		providers[stripegateway.ProviderName] = stripeGw
		log.Info("Gateway %s enabled as %s", stripegateway.ProviderName, domain.MethodGatewayA)
	}

	if cfg.Gateway.Omise.Enabled {
		omiseGw, err := omisegateway.New(omisegateway.Config{
			PublicKey:     cfg.Gateway.Omise.PublicKey,
			SecretKey:     cfg.Gateway.Omise.SecretKey,
			WebhookSecret: cfg.Gateway.Omise.WebhookSecret,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize omise gateway: %v", err)
		}
		gateways[domain.MethodGatewayB] = omiseGw
		providers[omisegateway.ProviderName] = omiseGw
		log.Info("Gateway %s enabled as %s", omisegateway.ProviderName, domain.MethodGatewayB)
	}

	// Сервисы
	auditSvc := auditService.NewService(auditRepository)
	bookingSvc := bookingsService.NewService(
		bookingRepository,
		statusLogRepository,
		quotationRepository,
		auditSvc,
		notify,
		txMgr,
		log,
	)
	if cfg.Users.URL != "" {
		bookingSvc.SetUserDirectory(userservice.NewClient(
			cfg.Users.URL,
			time.Duration(cfg.Users.Timeout)*time.Second,
			log,
		))
		log.Info("UserService client initialized (url=%s timeout=%ds)", cfg.Users.URL, cfg.Users.Timeout)
	}
	walletSvc := walletService.NewService(
		walletRepository,
		walletTxRepository,
		auditSvc,
		txMgr,
		metricsCollector,
		log,
	)
	quotationSvc := quotationsService.NewService(
		bookingRepository,
		quotationRepository,
		bookingSvc,
		auditSvc,
		notify,
		txMgr,
		quotationsService.Config{
			VATRate:            cfg.Business.VAT(),
			DefaultExpiryHours: cfg.Business.QuotationExpiryHours,
		},
		log,
	)
	paymentSvc := paymentsService.NewService(
		bookingRepository,
		paymentRepository,
		walletSvc,
		bookingSvc,
		gateways,
		auditSvc,
		notify,
		txMgr,
		metricsCollector,
		paymentsService.Config{
			Currency:       cfg.Gateway.Currency,
			GatewayTimeout: cfg.Gateway.TimeoutDuration(),
		},
		log,
	)
	webhookSvc := webhooksService.NewService(
		providers,
		webhookEventRepository,
		paymentSvc,
		dedupCache,
		txMgr,
		metricsCollector,
		webhooksService.Config{
			MaxAttempts: cfg.Business.WebhookMaxAttempts,
			QueuedGrace: time.Duration(cfg.Sweeper.WebhookQueuedGraceMinutes) * time.Minute,
		},
		log,
	)

	// Use cases
	createBookingUseCase := createBookingUC.NewUseCase(
		bookingRepository,
		statusLogRepository,
		auditSvc,
		catalogClient,
		txMgr,
		cfg.Business.VAT(),
		log,
	)

	// Фоновые задачи
	var sweep *sweeper.Sweeper
	if cfg.Sweeper.Enabled {
		sweep, err = sweeper.New(quotationSvc, webhookSvc, paymentSvc, metricsCollector, sweeper.Config{
			QuotationExpirySchedule:  cfg.Sweeper.QuotationExpirySchedule,
			WebhookRetrySchedule:     cfg.Sweeper.WebhookRetrySchedule,
			PaymentReconcileSchedule: cfg.Sweeper.PaymentReconcileSchedule,
			WebhookRetryBatch:        cfg.Sweeper.WebhookRetryBatch,
			PaymentReconcileBatch:    cfg.Sweeper.PaymentReconcileBatch,
			PaymentReconcileAfter:    time.Duration(cfg.Sweeper.PaymentReconcileAfterMinutes) * time.Minute,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize sweeper: %v", err)
		}
		sweep.Start()
	}

	// Handlers
	createBooking := createBookingHandler.NewHandler(createBookingUseCase, log)
	getBooking := getBookingHandler.NewHandler(bookingSvc, log)
	getCustomerBookings := getCustomerBookingsHandler.NewHandler(bookingSvc, log)
	getTechnicianBookings := getTechnicianBookingsHandler.NewHandler(bookingSvc, log)
	updateBookingStatus := updateBookingStatusHandler.NewHandler(bookingSvc, log)
	cancelBooking := cancelBookingHandler.NewHandler(bookingSvc, log)
	assignTechnician := assignTechnicianHandler.NewHandler(bookingSvc, log)
	getStatusHistory := getStatusHistoryHandler.NewHandler(bookingSvc, log)
	createQuotation := createQuotationHandler.NewHandler(quotationSvc, log)
	approveQuotation := decideQuotationHandler.NewApproveHandler(quotationSvc.Approve, log)
	rejectQuotation := decideQuotationHandler.NewRejectHandler(quotationSvc.Reject, log)
	listQuotations := listQuotationsHandler.NewHandler(quotationSvc, log)
	createPayment := createPaymentHandler.NewHandler(paymentSvc, log)
	getPayment := getPaymentHandler.NewHandler(paymentSvc, log)
	listPayments := listPaymentsHandler.NewHandler(paymentSvc, log)
	refundPayment := refundPaymentHandler.NewHandler(paymentSvc, log)
	getWallet := getWalletHandler.NewHandler(walletSvc, log)
	creditWallet := creditWalletHandler.NewHandler(walletSvc, log)
	receiveWebhook := receiveWebhookHandler.NewHandler(webhookSvc, log)

	// Настраиваем роутер
	r := mux.NewRouter()
	r.Use(middleware.RequestID)

	if cfg.Metrics.Enabled {
		r.Use(middleware.MetricsMiddleware(metricsCollector))
		r.Handle(cfg.Metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
		log.Info("Prometheus metrics endpoint exposed at %s", cfg.Metrics.Path)
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	// ============================================================
	// WEBHOOKS (аутентификация по подписи провайдера)
	// ============================================================

	webhookLimiter := middleware.NewRateLimiter(
		cfg.Server.WebhookRateLimit, cfg.Server.WebhookBurst, middleware.ByPathVar("provider"), log)
	webhooksRouter := api.PathPrefix("/webhooks").Subrouter()
	webhooksRouter.Use(webhookLimiter.Middleware)
	webhooksRouter.HandleFunc("/{provider}", receiveWebhook.Handle).Methods(http.MethodPost)

	// ============================================================
	// PROTECTED ROUTES (требуют X-User-ID и X-User-Role)
	// ============================================================

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth)

	// --- Бронирования ---
	protected.HandleFunc("/bookings", createBooking.Handle).Methods(http.MethodPost)
	protected.HandleFunc("/bookings/{bookingId}", getBooking.Handle).Methods(http.MethodGet)
	protected.HandleFunc("/bookings/{bookingId}/status", updateBookingStatus.Handle).Methods(http.MethodPatch)
	protected.HandleFunc("/bookings/{bookingId}/cancel", cancelBooking.Handle).Methods(http.MethodPatch)
	protected.HandleFunc("/bookings/{bookingId}/technician", assignTechnician.Handle).Methods(http.MethodPatch)
	protected.HandleFunc("/bookings/{bookingId}/status-history", getStatusHistory.Handle).Methods(http.MethodGet)
	protected.HandleFunc("/users/{userId}/bookings", getCustomerBookings.Handle).Methods(http.MethodGet)
	protected.HandleFunc("/technicians/{technicianId}/bookings", getTechnicianBookings.Handle).Methods(http.MethodGet)

	// --- Квотации ---
	protected.HandleFunc("/bookings/{bookingId}/quotations", createQuotation.Handle).Methods(http.MethodPost)
	protected.HandleFunc("/bookings/{bookingId}/quotations", listQuotations.Handle).Methods(http.MethodGet)
	protected.HandleFunc("/quotations/{quotationId}/approve", approveQuotation.Handle).Methods(http.MethodPost)
	protected.HandleFunc("/quotations/{quotationId}/reject", rejectQuotation.Handle).Methods(http.MethodPost)

	// --- Платежи ---
	protected.HandleFunc("/bookings/{bookingId}/payments", createPayment.Handle).Methods(http.MethodPost)
	protected.HandleFunc("/bookings/{bookingId}/payments", listPayments.Handle).Methods(http.MethodGet)
	protected.HandleFunc("/bookings/{bookingId}/payments/{paymentId}", getPayment.Handle).Methods(http.MethodGet)
	protected.HandleFunc("/bookings/{bookingId}/payments/{paymentId}/refund", refundPayment.Handle).Methods(http.MethodPost)

	// --- Кошелек ---
	protected.HandleFunc("/users/{userId}/wallet", getWallet.Handle).Methods(http.MethodGet)
	protected.HandleFunc("/users/{userId}/wallet/credits", creditWallet.Handle).Methods(http.MethodPost)

	// Создаем HTTP сервер
	addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	if sweep != nil {
		if err := sweep.Stop(shutdownCtx); err != nil {
			log.Error("Sweeper did not stop in time: %v", err)
		}
	}

	// Останавливаем сбор метрик connection pool
	close(stopMetricsCh)

	log.Info("Server exited")
}

// buildNotifier выбирает драйвер уведомлений по конфигурации
func buildNotifier(cfg *config.Config, log *logger.Logger) (notificationSender, func()) {
	switch cfg.Notifications.Driver {
	case config.NotifierAMQP:
		n, err := notifier.NewAMQP(cfg.Notifications.AMQPURL, cfg.Notifications.Exchange, log)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ: %v", err)
		}
		log.Info("Notifications published to exchange %q", cfg.Notifications.Exchange)
		return n, func() {
			if err := n.Close(); err != nil {
				log.Warn("Failed to close AMQP notifier: %v", err)
			}
		}

	case config.NotifierHTTP:
		log.Info("Notifications sent to %s", cfg.Notifications.URL)
		return notificationservice.NewClient(
			cfg.Notifications.URL,
			time.Duration(cfg.Notifications.Timeout)*time.Second,
			log,
		), func() {}

	default:
		log.Info("Notifications are written to the log only")
		return notifier.NewLog(log), func() {}
	}
}

// buildDedupCache подключает redis; без него дедупликация идет только через БД
func buildDedupCache(cfg *config.Config, log *logger.Logger) webhooksService.DedupCache {
	if !cfg.Redis.Enabled {
		return dedup.Noop{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := dedup.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("Redis unavailable, webhook dedup falls back to database: %v", err)
		return dedup.Noop{}
	}

	log.Info("Webhook dedup cache connected to redis at %s", cfg.Redis.Addr)
	return dedup.New(client, time.Duration(cfg.Redis.TTLHours)*time.Hour)
}
