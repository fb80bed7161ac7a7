package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/FlowPlatform/flow-connector/internal/channel"
	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/event_registry"
	"github.com/FlowPlatform/flow-connector/internal/flow_connector"
	"github.com/FlowPlatform/flow-connector/internal/middlewares"
	"github.com/FlowPlatform/flow-connector/internal/subscription_repository"
	"github.com/FlowPlatform/flow-connector/internal/tenant"

	"github.com/gorilla/mux"
)

const (
	INGEST_ENDPOINT = URL_BASE_PATH + "/ingest"
)

var _ = Describe("Ingest", func() {

	var (
		is                  *IngestServer
		validIdentityHeader string
	)

	BeforeEach(func() {
		apiMux := mux.NewRouter()
		cfg := config.GetConfig()
		cfg.ServiceToServiceCredentials["test_client_1"] = "12345"

		registry := event_registry.NewLocalEventDefinitionRegistry(cfg.FallbackToDefaultTenant)
		subscriptions := subscription_repository.NewLocalSubscriptionRepository()
		channels := channel.NewLocalChannelRegistry()

		err := channels.Register(context.TODO(), domain.InboundChannel{
			Key:              "orders",
			EventKeyStrategy: domain.EventKeyStrategy{Type: domain.FixedEventKeyStrategy, EventKey: "OrderPlaced"},
			TenantStrategy:   domain.TenantStrategy{Type: domain.FixedTenantStrategy, TenantID: "tenant-a"},
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = registry.Deploy(context.TODO(), domain.EventDefinition{
			Key:      "OrderPlaced",
			TenantID: "tenant-a",
			CorrelationParameters: []domain.EventField{
				{Name: "orderId", Type: domain.StringType},
			},
			PayloadFields: []domain.EventField{
				{Name: "total", Type: domain.DoubleType},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		err = subscriptions.Register(context.TODO(), domain.EventSubscription{
			ID:                "sub-1",
			EventKey:          "OrderPlaced",
			TenantID:          "tenant-a",
			CorrelationFilter: map[string]interface{}{"orderId": "order-1"},
			Scope: domain.SubscriptionScope{
				Type:         domain.BoundToScope,
				ExecutionRef: "exec-1",
			},
		})
		Expect(err).NotTo(HaveOccurred())

		dispatcher := flow_connector.NewEventDispatcher(&tenant.ChannelStrategyTenantIdResolver{}, registry, subscriptions)

		is = NewIngestServer(dispatcher, channels, apiMux, URL_BASE_PATH, cfg)
		is.Routes()

		validIdentityHeader = buildIdentityHeader("540155", "Associate")
	})

	Describe("Posting an event to a known channel", func() {
		Context("With a valid identity header", func() {
			It("Should return the resume action for a matching subscription", func() {

				postBody := strings.NewReader("{\"orderId\": \"order-1\", \"total\": 12.5}")

				req, err := http.NewRequest("POST", INGEST_ENDPOINT+"/orders", postBody)
				Expect(err).NotTo(HaveOccurred())

				req.Header.Add(IDENTITY_HEADER_NAME, validIdentityHeader)

				rr := httptest.NewRecorder()

				is.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusOK))

				var response ingestResponse
				json.Unmarshal(rr.Body.Bytes(), &response)
				Expect(response.Actions).To(HaveLen(1))
				Expect(response.Actions[0].Type).To(Equal("resume"))
				Expect(response.Actions[0].ExecutionRef).To(Equal("exec-1"))
				Expect(response.Actions[0].SubscriptionID).To(Equal("sub-1"))
			})

			It("Should return a dropped action when no subscription matches", func() {

				postBody := strings.NewReader("{\"orderId\": \"order-2\", \"total\": 12.5}")

				req, err := http.NewRequest("POST", INGEST_ENDPOINT+"/orders", postBody)
				Expect(err).NotTo(HaveOccurred())

				req.Header.Add(IDENTITY_HEADER_NAME, validIdentityHeader)

				rr := httptest.NewRecorder()

				is.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusOK))

				var response ingestResponse
				json.Unmarshal(rr.Body.Bytes(), &response)
				Expect(response.Actions).To(HaveLen(1))
				Expect(response.Actions[0].Type).To(Equal("dropped"))
			})

			It("Should reject a payload that fails type coercion", func() {

				postBody := strings.NewReader("{\"orderId\": \"order-1\", \"total\": \"not a number\"}")

				req, err := http.NewRequest("POST", INGEST_ENDPOINT+"/orders", postBody)
				Expect(err).NotTo(HaveOccurred())

				req.Header.Add(IDENTITY_HEADER_NAME, validIdentityHeader)

				rr := httptest.NewRecorder()

				is.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusUnprocessableEntity))
			})

			It("Should reject a malformed payload", func() {

				postBody := strings.NewReader("not json")

				req, err := http.NewRequest("POST", INGEST_ENDPOINT+"/orders", postBody)
				Expect(err).NotTo(HaveOccurred())

				req.Header.Add(IDENTITY_HEADER_NAME, validIdentityHeader)

				rr := httptest.NewRecorder()

				is.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("Posting an event to an unknown channel", func() {
		Context("With a valid pre shared key", func() {
			It("Should return a 404", func() {

				postBody := strings.NewReader("{\"orderId\": \"order-1\"}")

				req, err := http.NewRequest("POST", INGEST_ENDPOINT+"/no-such-channel", postBody)
				Expect(err).NotTo(HaveOccurred())

				req.Header.Add(middlewares.PSKClientIdHeader, "test_client_1")
				req.Header.Add(middlewares.PSKOrgIdHeader, "1979710")
				req.Header.Add(middlewares.PSKAccountHeader, "540155")
				req.Header.Add(middlewares.PSKHeader, "12345")

				rr := httptest.NewRecorder()

				is.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("Posting an event without credentials", func() {
		It("Should fail to authenticate", func() {

			postBody := strings.NewReader("{\"orderId\": \"order-1\"}")

			req, err := http.NewRequest("POST", INGEST_ENDPOINT+"/orders", postBody)
			Expect(err).NotTo(HaveOccurred())

			rr := httptest.NewRecorder()

			is.router.ServeHTTP(rr, req)

			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
