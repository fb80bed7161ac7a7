package api

import (
	"net/http"

	"github.com/FlowPlatform/flow-connector/internal/channel"
	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/event_registry"
	"github.com/FlowPlatform/flow-connector/internal/middlewares"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"
	"github.com/FlowPlatform/flow-connector/internal/subscription_repository"
	"github.com/redhatinsights/platform-go-middlewares/request_id"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type ManagementServer struct {
	registry      event_registry.EventDefinitionRegistry
	subscriptions subscription_repository.SubscriptionRepository
	channels      *chanRegistry
	router        *mux.Router
	urlBasePath   string
	config        *config.Config
}

type chanRegistry struct {
	channel.ChannelRegistrar
	channel.ChannelLocator
}

func NewManagementServer(
	registry event_registry.EventDefinitionRegistry,
	subscriptions subscription_repository.SubscriptionRepository,
	channelRegistrar channel.ChannelRegistrar,
	channelLocator channel.ChannelLocator,
	r *mux.Router,
	urlBasePath string,
	cfg *config.Config) *ManagementServer {

	return &ManagementServer{
		registry:      registry,
		subscriptions: subscriptions,
		channels:      &chanRegistry{channelRegistrar, channelLocator},
		router:        r,
		urlBasePath:   urlBasePath,
		config:        cfg,
	}
}

func (s *ManagementServer) Routes() {
	mmw := &middlewares.MetricsMiddleware{}
	amw := &middlewares.AuthMiddleware{Secrets: s.config.ServiceToServiceCredentials}

	securedSubRouter := s.router.PathPrefix(s.urlBasePath).Subrouter()
	securedSubRouter.Use(logger.AccessLoggerMiddleware,
		mmw.RecordHTTPMetrics,
		amw.Authenticate)

	securedSubRouter.HandleFunc("/definitions", s.handleDefinitionDeploy()).Methods(http.MethodPost)
	securedSubRouter.HandleFunc("/definitions", s.handleDefinitionListing()).Methods(http.MethodGet)
	securedSubRouter.HandleFunc("/definitions/{key}", s.handleDefinitionLookup()).Methods(http.MethodGet)
	securedSubRouter.HandleFunc("/definitions/{key}", s.handleDefinitionRetire()).Methods(http.MethodDelete)

	securedSubRouter.HandleFunc("/subscriptions", s.handleSubscriptionRegister()).Methods(http.MethodPost)
	securedSubRouter.HandleFunc("/subscriptions", s.handleSubscriptionListing()).Methods(http.MethodGet)
	securedSubRouter.HandleFunc("/subscriptions/{id}", s.handleSubscriptionUnregister()).Methods(http.MethodDelete)

	securedSubRouter.HandleFunc("/channels", s.handleChannelRegister()).Methods(http.MethodPost)
	securedSubRouter.HandleFunc("/channels", s.handleChannelListing()).Methods(http.MethodGet)
}

func (s *ManagementServer) requestLogger(req *http.Request) *logrus.Entry {
	principal, _ := middlewares.GetPrincipal(req.Context())
	requestId := request_id.GetReqID(req.Context())
	return logger.Log.WithFields(logrus.Fields{
		"account":    principal.GetAccount(),
		"org_id":     principal.GetOrgID(),
		"request_id": requestId})
}

func (s *ManagementServer) handleDefinitionDeploy() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		log := s.requestLogger(req)

		body := http.MaxBytesReader(w, req.Body, 1048576)

		var def domain.EventDefinition

		if err := decodeJSON(body, &def); err != nil {
			errorResponse := errorResponse{Title: "Unable to process json input",
				Status: http.StatusBadRequest,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		deployed, err := s.registry.Deploy(req.Context(), def)
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to deploy event definition")
			errorResponse := errorResponse{Title: "Unable to deploy event definition",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		log.Infof("Deployed event definition %s (tenant:%s, version:%d)",
			deployed.Key, deployed.TenantID, deployed.Version)

		writeJSONResponse(w, http.StatusCreated, deployed)
	}
}

func (s *ManagementServer) handleDefinitionRetire() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		log := s.requestLogger(req)

		key := domain.EventKey(mux.Vars(req)["key"])
		tenant := domain.TenantID(req.URL.Query().Get("tenant"))

		err := s.registry.Retire(req.Context(), key, tenant)
		if err == event_registry.ErrEventDefinitionNotFound {
			errorResponse := errorResponse{Title: "No active event definition found",
				Status: http.StatusNotFound,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to retire event definition")
			errorResponse := errorResponse{Title: "Unable to retire event definition",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		log.Infof("Retired event definition %s (tenant:%s)", key, tenant)

		writeJSONResponse(w, http.StatusOK, struct{}{})
	}
}

func (s *ManagementServer) handleDefinitionLookup() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		key := domain.EventKey(mux.Vars(req)["key"])
		tenant := domain.TenantID(req.URL.Query().Get("tenant"))

		var def domain.EventDefinition
		var err error

		if v := req.URL.Query().Get("version"); v != "" {
			version, parseErr := parseNonNegativeInt(v)
			if parseErr != nil {
				errorResponse := errorResponse{Title: "Invalid version",
					Status: http.StatusBadRequest,
					Detail: parseErr.Error()}
				writeJSONResponse(w, errorResponse.Status, errorResponse)
				return
			}
			def, err = s.registry.LookupDefinitionByVersion(req.Context(), key, tenant, version)
		} else {
			def, err = s.registry.LookupDefinition(req.Context(), key, tenant)
		}

		if err == event_registry.ErrEventDefinitionNotFound {
			errorResponse := errorResponse{Title: "No event definition found",
				Status: http.StatusNotFound,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}
		if err != nil {
			errorResponse := errorResponse{Title: "Unable to look up event definition",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		writeJSONResponse(w, http.StatusOK, def)
	}
}

func (s *ManagementServer) handleDefinitionListing() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		offset, limit := getOffsetAndLimitFromQueryParams(req)

		definitions, total, err := s.registry.GetDefinitions(req.Context(), offset, limit)
		if err != nil {
			errorResponse := errorResponse{Title: "Unable to list event definitions",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		response := buildPaginatedResponse(req.URL, offset, limit, total, definitions)

		writeJSONResponse(w, http.StatusOK, response)
	}
}

func (s *ManagementServer) handleSubscriptionRegister() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		log := s.requestLogger(req)

		body := http.MaxBytesReader(w, req.Body, 1048576)

		var sub domain.EventSubscription

		if err := decodeJSON(body, &sub); err != nil {
			errorResponse := errorResponse{Title: "Unable to process json input",
				Status: http.StatusBadRequest,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		if sub.ID == "" {
			sub.ID = domain.SubscriptionID(uuid.NewString())
		}

		err := s.subscriptions.Register(req.Context(), sub)
		if err == subscription_repository.ErrDuplicateSubscription {
			errorResponse := errorResponse{Title: "Duplicate subscription id",
				Status: http.StatusConflict,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to register subscription")
			errorResponse := errorResponse{Title: "Unable to register subscription",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		log.Infof("Registered subscription %s (event_key:%s, tenant:%s)",
			sub.ID, sub.EventKey, sub.TenantID)

		writeJSONResponse(w, http.StatusCreated, sub)
	}
}

func (s *ManagementServer) handleSubscriptionUnregister() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		log := s.requestLogger(req)

		id := domain.SubscriptionID(mux.Vars(req)["id"])

		err := s.subscriptions.Unregister(req.Context(), id)
		if err != nil && err != subscription_repository.ErrSubscriptionNotFound {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to unregister subscription")
			errorResponse := errorResponse{Title: "Unable to unregister subscription",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		// An execution completing concurrently with the unregister is
		// not an error - removal is last-writer-wins
		writeJSONResponse(w, http.StatusOK, struct{}{})
	}
}

func (s *ManagementServer) handleSubscriptionListing() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		offset, limit := getOffsetAndLimitFromQueryParams(req)
		tenant := domain.TenantID(req.URL.Query().Get("tenant"))

		subscriptions, total, err := s.subscriptions.GetSubscriptionsByTenant(req.Context(), tenant, offset, limit)
		if err != nil {
			errorResponse := errorResponse{Title: "Unable to list subscriptions",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		response := buildPaginatedResponse(req.URL, offset, limit, total, subscriptions)

		writeJSONResponse(w, http.StatusOK, response)
	}
}

func (s *ManagementServer) handleChannelRegister() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		log := s.requestLogger(req)

		body := http.MaxBytesReader(w, req.Body, 1048576)

		var ch domain.InboundChannel

		if err := decodeJSON(body, &ch); err != nil {
			errorResponse := errorResponse{Title: "Unable to process json input",
				Status: http.StatusBadRequest,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		err := s.channels.Register(req.Context(), ch)
		if err == channel.ErrDuplicateChannel {
			errorResponse := errorResponse{Title: "Duplicate channel key",
				Status: http.StatusConflict,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to register channel")
			errorResponse := errorResponse{Title: "Unable to register channel",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		log.Infof("Registered channel %s", ch.Key)

		writeJSONResponse(w, http.StatusCreated, ch)
	}
}

func (s *ManagementServer) handleChannelListing() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		offset, limit := getOffsetAndLimitFromQueryParams(req)

		channels, total, err := s.channels.GetChannels(req.Context(), offset, limit)
		if err != nil {
			errorResponse := errorResponse{Title: "Unable to list channels",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		response := buildPaginatedResponse(req.URL, offset, limit, total, channels)

		writeJSONResponse(w, http.StatusOK, response)
	}
}
