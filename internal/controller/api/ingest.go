package api

import (
	"errors"
	"io/ioutil"
	"net/http"

	"github.com/FlowPlatform/flow-connector/internal/channel"
	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/flow_connector"
	"github.com/FlowPlatform/flow-connector/internal/middlewares"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"
	"github.com/redhatinsights/platform-go-middlewares/request_id"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// IngestServer accepts inbound events over HTTP and runs them through
// the dispatcher synchronously, returning the produced actions to the
// caller.  The HTTP channel is mainly used by deployments that cannot
// reach the message brokers.
type IngestServer struct {
	dispatcher     *flow_connector.EventDispatcher
	channelLocator channel.ChannelLocator
	router         *mux.Router
	urlBasePath    string
	config         *config.Config
}

func NewIngestServer(
	dispatcher *flow_connector.EventDispatcher,
	channelLocator channel.ChannelLocator,
	r *mux.Router,
	urlBasePath string,
	cfg *config.Config) *IngestServer {

	return &IngestServer{
		dispatcher:     dispatcher,
		channelLocator: channelLocator,
		router:         r,
		urlBasePath:    urlBasePath,
		config:         cfg,
	}
}

func (s *IngestServer) Routes() {
	mmw := &middlewares.MetricsMiddleware{}
	amw := &middlewares.AuthMiddleware{Secrets: s.config.ServiceToServiceCredentials}

	securedSubRouter := s.router.PathPrefix(s.urlBasePath).Subrouter()
	securedSubRouter.Use(logger.AccessLoggerMiddleware,
		mmw.RecordHTTPMetrics,
		amw.Authenticate)

	securedSubRouter.HandleFunc("/ingest/{channel}", s.handleEventIngest()).Methods(http.MethodPost)
}

type ingestResponse struct {
	Actions []actionResult `json:"actions"`
}

type actionResult struct {
	Type                 string `json:"type"`
	ExecutionRef         string `json:"execution_ref,omitempty"`
	ProcessDefinitionRef string `json:"process_definition_ref,omitempty"`
	SubscriptionID       string `json:"subscription_id,omitempty"`
}

func (s *IngestServer) handleEventIngest() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		requestId := request_id.GetReqID(req.Context())
		channelKey := mux.Vars(req)["channel"]

		log := logger.Log.WithFields(logrus.Fields{
			"request_id": requestId,
			"channel":    channelKey})

		ch, err := s.channelLocator.GetChannel(req.Context(), channelKey)
		if err == channel.ErrChannelNotFound {
			errorResponse := errorResponse{Title: "Unknown channel",
				Status: http.StatusNotFound,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}
		if err != nil {
			errorResponse := errorResponse{Title: "Unable to look up channel",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		body := http.MaxBytesReader(w, req.Body, 1048576)
		rawPayload, err := ioutil.ReadAll(body)
		if err != nil {
			errorResponse := errorResponse{Title: "Unable to read request body",
				Status: http.StatusBadRequest,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		actions, err := s.dispatcher.DispatchEvent(req.Context(), ch, rawPayload)
		if err != nil {
			var materializationErr *flow_connector.MaterializationError
			if errors.As(err, &materializationErr) {
				errorResponse := errorResponse{Title: "Unable to materialize event",
					Status: http.StatusUnprocessableEntity,
					Detail: err.Error()}
				writeJSONResponse(w, errorResponse.Status, errorResponse)
				return
			}

			if err == channel.ErrMalformedPayload || err == flow_connector.ErrEventKeyNotResolved {
				errorResponse := errorResponse{Title: "Unable to process event",
					Status: http.StatusBadRequest,
					Detail: err.Error()}
				writeJSONResponse(w, errorResponse.Status, errorResponse)
				return
			}

			log.WithFields(logrus.Fields{"error": err}).Error("Unable to dispatch event")
			errorResponse := errorResponse{Title: "Unable to dispatch event",
				Status: http.StatusInternalServerError,
				Detail: err.Error()}
			writeJSONResponse(w, errorResponse.Status, errorResponse)
			return
		}

		response := ingestResponse{Actions: make([]actionResult, 0, len(actions))}
		for _, action := range actions {
			response.Actions = append(response.Actions, actionResult{
				Type:                 string(action.Type),
				ExecutionRef:         string(action.ExecutionRef),
				ProcessDefinitionRef: string(action.ProcessDefinitionRef),
				SubscriptionID:       string(action.SubscriptionID),
			})
		}

		writeJSONResponse(w, http.StatusOK, response)
	}
}
