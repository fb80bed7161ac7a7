package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/FlowPlatform/flow-connector/internal/channel"
	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/event_registry"
	"github.com/FlowPlatform/flow-connector/internal/middlewares"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"
	"github.com/FlowPlatform/flow-connector/internal/subscription_repository"

	"github.com/gorilla/mux"
)

const (
	URL_BASE_PATH = "/api/flow-connector"

	DEFINITIONS_ENDPOINT   = URL_BASE_PATH + "/definitions"
	SUBSCRIPTIONS_ENDPOINT = URL_BASE_PATH + "/subscriptions"
	CHANNELS_ENDPOINT      = URL_BASE_PATH + "/channels"

	IDENTITY_HEADER_NAME = "x-rh-identity"
)

func init() {
	logger.InitLogger()
}

func createDefinitionPostBody(key string, tenant string) io.Reader {
	jsonString := fmt.Sprintf(
		"{\"key\": \"%s\", \"tenant_id\": \"%s\", \"correlation_parameters\": [{\"name\": \"orderId\", \"type\": \"string\"}], \"payload_fields\": [{\"name\": \"total\", \"type\": \"double\"}]}",
		key,
		tenant)
	return strings.NewReader(jsonString)
}

func createSubscriptionPostBody(id string, eventKey string, tenant string) io.Reader {
	jsonString := fmt.Sprintf(
		"{\"id\": \"%s\", \"event_key\": \"%s\", \"tenant_id\": \"%s\", \"correlation_filter\": {\"orderId\": \"order-1\"}, \"scope\": {\"type\": \"bound_to\", \"execution_ref\": \"exec-1\"}}",
		id,
		eventKey,
		tenant)
	return strings.NewReader(jsonString)
}

func createChannelPostBody(key string) io.Reader {
	jsonString := fmt.Sprintf(
		"{\"key\": \"%s\", \"event_key_strategy\": {\"type\": \"fixed\", \"event_key\": \"OrderPlaced\"}, \"tenant_strategy\": {\"type\": \"fixed\", \"tenant_id\": \"tenant-a\"}}",
		key)
	return strings.NewReader(jsonString)
}

var _ = Describe("Management", func() {

	var (
		ms                  *ManagementServer
		validIdentityHeader string
	)

	var addPskHeaders = func(req *http.Request) {
		req.Header.Add(middlewares.PSKClientIdHeader, "test_client_1")
		req.Header.Add(middlewares.PSKOrgIdHeader, "1979710")
		req.Header.Add(middlewares.PSKAccountHeader, "540155")
		req.Header.Add(middlewares.PSKHeader, "12345")
	}

	BeforeEach(func() {
		apiMux := mux.NewRouter()
		cfg := config.GetConfig()
		cfg.ServiceToServiceCredentials["test_client_1"] = "12345"

		registry := event_registry.NewLocalEventDefinitionRegistry(cfg.FallbackToDefaultTenant)
		subscriptions := subscription_repository.NewLocalSubscriptionRepository()
		channels := channel.NewLocalChannelRegistry()

		ms = NewManagementServer(registry, subscriptions, channels, channels, apiMux, URL_BASE_PATH, cfg)
		ms.Routes()

		validIdentityHeader = buildIdentityHeader("540155", "Associate")
	})

	Describe("Deploying event definitions", func() {
		Context("With a valid identity header", func() {
			It("Should assign version 1 to the first deployment", func() {

				req, err := http.NewRequest("POST", DEFINITIONS_ENDPOINT, createDefinitionPostBody("OrderPlaced", "tenant-a"))
				Expect(err).NotTo(HaveOccurred())

				req.Header.Add(IDENTITY_HEADER_NAME, validIdentityHeader)

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusCreated))

				var m map[string]interface{}
				json.Unmarshal(rr.Body.Bytes(), &m)
				Expect(m).Should(HaveKeyWithValue("key", "OrderPlaced"))
				Expect(m).Should(HaveKeyWithValue("version", float64(1)))
			})

			It("Should assign increasing versions to successive deployments", func() {

				for _, expectedVersion := range []float64{1, 2, 3} {
					req, err := http.NewRequest("POST", DEFINITIONS_ENDPOINT, createDefinitionPostBody("OrderPlaced", "tenant-a"))
					Expect(err).NotTo(HaveOccurred())

					req.Header.Add(IDENTITY_HEADER_NAME, validIdentityHeader)

					rr := httptest.NewRecorder()

					ms.router.ServeHTTP(rr, req)

					Expect(rr.Code).To(Equal(http.StatusCreated))

					var m map[string]interface{}
					json.Unmarshal(rr.Body.Bytes(), &m)
					Expect(m).Should(HaveKeyWithValue("version", expectedVersion))
				}
			})

			It("Should reject a request with an invalid json body", func() {

				req, err := http.NewRequest("POST", DEFINITIONS_ENDPOINT, strings.NewReader("not json"))
				Expect(err).NotTo(HaveOccurred())

				req.Header.Add(IDENTITY_HEADER_NAME, validIdentityHeader)

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusBadRequest))
			})
		})

		Context("Without an identity header or pre shared key", func() {
			It("Should fail to authenticate", func() {

				req, err := http.NewRequest("POST", DEFINITIONS_ENDPOINT, createDefinitionPostBody("OrderPlaced", "tenant-a"))
				Expect(err).NotTo(HaveOccurred())

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusUnauthorized))
			})
		})

		Context("With an invalid pre shared key", func() {
			It("Should fail to authenticate", func() {

				req, err := http.NewRequest("POST", DEFINITIONS_ENDPOINT, createDefinitionPostBody("OrderPlaced", "tenant-a"))
				Expect(err).NotTo(HaveOccurred())

				req.Header.Add(middlewares.PSKClientIdHeader, "test_client_1")
				req.Header.Add(middlewares.PSKOrgIdHeader, "1979710")
				req.Header.Add(middlewares.PSKHeader, "bogus")

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusUnauthorized))
			})
		})
	})

	Describe("Looking up event definitions", func() {
		Context("With a valid pre shared key", func() {

			BeforeEach(func() {
				for i := 0; i < 2; i++ {
					req, err := http.NewRequest("POST", DEFINITIONS_ENDPOINT, createDefinitionPostBody("OrderPlaced", "tenant-a"))
					Expect(err).NotTo(HaveOccurred())
					addPskHeaders(req)
					rr := httptest.NewRecorder()
					ms.router.ServeHTTP(rr, req)
					Expect(rr.Code).To(Equal(http.StatusCreated))
				}
			})

			It("Should return the active version", func() {

				req, err := http.NewRequest("GET", DEFINITIONS_ENDPOINT+"/OrderPlaced?tenant=tenant-a", nil)
				Expect(err).NotTo(HaveOccurred())

				addPskHeaders(req)

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusOK))

				var m map[string]interface{}
				json.Unmarshal(rr.Body.Bytes(), &m)
				Expect(m).Should(HaveKeyWithValue("version", float64(2)))
			})

			It("Should keep retired versions addressable by version number", func() {

				req, err := http.NewRequest("GET", DEFINITIONS_ENDPOINT+"/OrderPlaced?tenant=tenant-a&version=1", nil)
				Expect(err).NotTo(HaveOccurred())

				addPskHeaders(req)

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusOK))

				var m map[string]interface{}
				json.Unmarshal(rr.Body.Bytes(), &m)
				Expect(m).Should(HaveKeyWithValue("version", float64(1)))
			})

			It("Should return a 404 for an unknown event key", func() {

				req, err := http.NewRequest("GET", DEFINITIONS_ENDPOINT+"/NoSuchEvent?tenant=tenant-a", nil)
				Expect(err).NotTo(HaveOccurred())

				addPskHeaders(req)

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusNotFound))
			})

			It("Should reject a negative version", func() {

				req, err := http.NewRequest("GET", DEFINITIONS_ENDPOINT+"/OrderPlaced?tenant=tenant-a&version=-1", nil)
				Expect(err).NotTo(HaveOccurred())

				addPskHeaders(req)

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("Retiring event definitions", func() {
		Context("With a valid pre shared key", func() {

			BeforeEach(func() {
				req, err := http.NewRequest("POST", DEFINITIONS_ENDPOINT, createDefinitionPostBody("OrderPlaced", "tenant-a"))
				Expect(err).NotTo(HaveOccurred())
				addPskHeaders(req)
				rr := httptest.NewRecorder()
				ms.router.ServeHTTP(rr, req)
				Expect(rr.Code).To(Equal(http.StatusCreated))
			})

			It("Should retire the active definition", func() {

				req, err := http.NewRequest("DELETE", DEFINITIONS_ENDPOINT+"/OrderPlaced?tenant=tenant-a", nil)
				Expect(err).NotTo(HaveOccurred())

				addPskHeaders(req)

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusOK))

				req, err = http.NewRequest("GET", DEFINITIONS_ENDPOINT+"/OrderPlaced?tenant=tenant-a", nil)
				Expect(err).NotTo(HaveOccurred())

				addPskHeaders(req)

				rr = httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusNotFound))
			})

			It("Should return a 404 when there is no active definition", func() {

				req, err := http.NewRequest("DELETE", DEFINITIONS_ENDPOINT+"/NoSuchEvent?tenant=tenant-a", nil)
				Expect(err).NotTo(HaveOccurred())

				addPskHeaders(req)

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("Registering subscriptions", func() {
		Context("With a valid pre shared key", func() {
			It("Should register a subscription with a client supplied id", func() {

				req, err := http.NewRequest("POST", SUBSCRIPTIONS_ENDPOINT, createSubscriptionPostBody("sub-1", "OrderPlaced", "tenant-a"))
				Expect(err).NotTo(HaveOccurred())

				addPskHeaders(req)

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusCreated))

				var m map[string]interface{}
				json.Unmarshal(rr.Body.Bytes(), &m)
				Expect(m).Should(HaveKeyWithValue("id", "sub-1"))
			})

			It("Should assign an id when the client does not supply one", func() {

				req, err := http.NewRequest("POST", SUBSCRIPTIONS_ENDPOINT, createSubscriptionPostBody("", "OrderPlaced", "tenant-a"))
				Expect(err).NotTo(HaveOccurred())

				addPskHeaders(req)

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusCreated))

				var m map[string]interface{}
				json.Unmarshal(rr.Body.Bytes(), &m)
				Expect(m["id"]).ShouldNot(BeEmpty())
			})

			It("Should reject a duplicate subscription id", func() {

				req, err := http.NewRequest("POST", SUBSCRIPTIONS_ENDPOINT, createSubscriptionPostBody("sub-1", "OrderPlaced", "tenant-a"))
				Expect(err).NotTo(HaveOccurred())
				addPskHeaders(req)
				rr := httptest.NewRecorder()
				ms.router.ServeHTTP(rr, req)
				Expect(rr.Code).To(Equal(http.StatusCreated))

				req, err = http.NewRequest("POST", SUBSCRIPTIONS_ENDPOINT, createSubscriptionPostBody("sub-1", "OrderPlaced", "tenant-a"))
				Expect(err).NotTo(HaveOccurred())
				addPskHeaders(req)
				rr = httptest.NewRecorder()
				ms.router.ServeHTTP(rr, req)
				Expect(rr.Code).To(Equal(http.StatusConflict))
			})
		})
	})

	Describe("Unregistering subscriptions", func() {
		Context("With a valid pre shared key", func() {
			It("Should unregister a registered subscription", func() {

				req, err := http.NewRequest("POST", SUBSCRIPTIONS_ENDPOINT, createSubscriptionPostBody("sub-1", "OrderPlaced", "tenant-a"))
				Expect(err).NotTo(HaveOccurred())
				addPskHeaders(req)
				rr := httptest.NewRecorder()
				ms.router.ServeHTTP(rr, req)
				Expect(rr.Code).To(Equal(http.StatusCreated))

				req, err = http.NewRequest("DELETE", SUBSCRIPTIONS_ENDPOINT+"/sub-1", nil)
				Expect(err).NotTo(HaveOccurred())
				addPskHeaders(req)
				rr = httptest.NewRecorder()
				ms.router.ServeHTTP(rr, req)
				Expect(rr.Code).To(Equal(http.StatusOK))
			})

			It("Should tolerate unregistering an unknown subscription", func() {

				req, err := http.NewRequest("DELETE", SUBSCRIPTIONS_ENDPOINT+"/no-such-subscription", nil)
				Expect(err).NotTo(HaveOccurred())

				addPskHeaders(req)

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusOK))
			})
		})
	})

	Describe("Registering channels", func() {
		Context("With a valid pre shared key", func() {
			It("Should register a channel", func() {

				req, err := http.NewRequest("POST", CHANNELS_ENDPOINT, createChannelPostBody("orders"))
				Expect(err).NotTo(HaveOccurred())

				addPskHeaders(req)

				rr := httptest.NewRecorder()

				ms.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusCreated))
			})

			It("Should reject a duplicate channel key", func() {

				req, err := http.NewRequest("POST", CHANNELS_ENDPOINT, createChannelPostBody("orders"))
				Expect(err).NotTo(HaveOccurred())
				addPskHeaders(req)
				rr := httptest.NewRecorder()
				ms.router.ServeHTTP(rr, req)
				Expect(rr.Code).To(Equal(http.StatusCreated))

				req, err = http.NewRequest("POST", CHANNELS_ENDPOINT, createChannelPostBody("orders"))
				Expect(err).NotTo(HaveOccurred())
				addPskHeaders(req)
				rr = httptest.NewRecorder()
				ms.router.ServeHTTP(rr, req)
				Expect(rr.Code).To(Equal(http.StatusConflict))
			})

			It("Should list registered channels", func() {

				req, err := http.NewRequest("POST", CHANNELS_ENDPOINT, createChannelPostBody("orders"))
				Expect(err).NotTo(HaveOccurred())
				addPskHeaders(req)
				rr := httptest.NewRecorder()
				ms.router.ServeHTTP(rr, req)
				Expect(rr.Code).To(Equal(http.StatusCreated))

				req, err = http.NewRequest("GET", CHANNELS_ENDPOINT, nil)
				Expect(err).NotTo(HaveOccurred())
				addPskHeaders(req)
				rr = httptest.NewRecorder()
				ms.router.ServeHTTP(rr, req)
				Expect(rr.Code).To(Equal(http.StatusOK))

				var response paginatedResponse
				json.Unmarshal(rr.Body.Bytes(), &response)
				Expect(response.Meta.Count).To(Equal(1))
			})
		})
	})
})
