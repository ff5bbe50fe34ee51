package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	httpadapter "github.com/Arseniidemydov/Relo-Radar-Dialer/internal/adapters/http"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/config"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/repository"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/services/call"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/session"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/logger"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/redis"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/twilio"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// sweepInterval is how often the in-memory registry is scanned for sessions
// whose terminal status event never arrived
const sweepInterval = 5 * time.Minute

// HandlerManager manages all handlers and their initialization
type HandlerManager struct {
	config    *config.DialerConfig
	service   *call.Service
	twilioSvc *twilio.Service
	leadRepo  repository.LeadRepository
	registry  session.Registry
}

// NewHandlerManager creates and initializes all handlers and services
func NewHandlerManager(cfg *config.DialerConfig) (*HandlerManager, error) {
	registry := newRegistry(cfg)
	leadRepo := newLeadRepository()

	twilioSvc := twilio.NewService(
		cfg.TwilioAccountSID,
		cfg.TwilioAuthToken,
		cfg.TwilioAPIKey,
		cfg.TwilioAPISecret,
		cfg.TwilioTwimlApp,
	)

	var primer call.ContextPrimer
	voiceflowClient := httpadapter.NewVoiceflowClient(cfg.VoiceflowBaseURL, cfg.VoiceflowAPIKey)
	if voiceflowClient.Enabled() {
		primer = voiceflowClient
		logger.Base().Info("voiceflow context priming enabled", zap.String("base_url", cfg.VoiceflowBaseURL))
	} else {
		logger.Base().Info("voiceflow context priming disabled, no api key configured")
	}

	var notifier call.TransferNotifier
	automationClient := httpadapter.NewAutomationClient(cfg.AutomationWebhookURL)
	if automationClient.Enabled() {
		notifier = automationClient
		logger.Base().Info("automation webhook relay enabled")
	} else {
		logger.Base().Info("automation webhook relay disabled, no url configured")
	}

	service := call.NewService(cfg, registry, twilioSvc, primer, notifier)

	return &HandlerManager{
		config:    cfg,
		service:   service,
		twilioSvc: twilioSvc,
		leadRepo:  leadRepo,
		registry:  registry,
	}, nil
}

// newRegistry selects the session registry backend. Redis is used when
// REDIS_HOST is set so multiple instances share one session map; otherwise an
// in-memory registry with a background sweeper serves a single instance.
func newRegistry(cfg *config.DialerConfig) session.Registry {
	if host := os.Getenv("REDIS_HOST"); host != "" {
		redisConfig := &redis.RedisConfig{
			Host:     host,
			Port:     config.GetEnvOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		}
		redisSvc, err := redis.NewRedisService(redisConfig)
		if err != nil {
			logger.Base().Warn("failed to initialize redis, falling back to in-memory session registry", zap.Error(err))
		} else {
			logger.Base().Info("redis session registry initialized", zap.String("host", host))
			return session.NewRedisRegistry(redisSvc)
		}
	}

	registry := session.NewMemoryRegistry()
	if cfg.SessionTTL > 0 {
		go registry.StartSweeper(context.Background(), sweepInterval, cfg.SessionTTL)
	}
	return registry
}

// newLeadRepository selects the lead book backend. Postgres is used when
// DB_HOST is set; otherwise the seeded in-memory repository serves development.
func newLeadRepository() repository.LeadRepository {
	if repository.IsDatabaseConfigured() {
		repo, err := repository.NewLeadRepository()
		if err != nil {
			logger.Base().Warn("failed to connect to database, falling back to in-memory lead repository", zap.Error(err))
		} else {
			logger.Base().Info("postgres lead repository initialized")
			return repo
		}
	}

	logger.Base().Info("using in-memory lead repository")
	return repository.NewMemoryLeadRepository()
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.Use(CORSMiddleware)
	router.Use(GlobalLoggingMiddleware)

	router.HandleFunc("/", hm.handleRoot).Methods("GET")
	router.HandleFunc("/ping", hm.handlePing).Methods("GET")

	twilioHandler := NewTwilioHandler(hm.config, hm.twilioSvc, hm.service)
	twilioHandler.SetupTwilioRoutes(router)

	leadsHandler := NewLeadsHandler(hm.leadRepo, hm.service)
	leadsHandler.SetupLeadsRoutes(router)

	// CORS preflight handling for all routes
	router.PathPrefix("/").HandlerFunc(handleCORS).Methods("OPTIONS")

	logger.Base().Info("all application routes registered")
}

// handleCORS handles CORS preflight requests
func handleCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusOK)
}

// GetService returns the call service
func (hm *HandlerManager) GetService() *call.Service {
	return hm.service
}

// GetLeadRepository returns the lead repository
func (hm *HandlerManager) GetLeadRepository() repository.LeadRepository {
	return hm.leadRepo
}

func (hm *HandlerManager) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("Relo Radar Dialer backend running"))
}

func (hm *HandlerManager) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
