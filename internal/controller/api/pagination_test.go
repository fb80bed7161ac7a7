package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/FlowPlatform/flow-connector/internal/channel"
	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/event_registry"
	"github.com/FlowPlatform/flow-connector/internal/subscription_repository"

	"github.com/gorilla/mux"
)

var _ = Describe("Management API Pagination - 11 subscriptions total", func() {

	var (
		ms                  *ManagementServer
		validIdentityHeader string
	)

	BeforeEach(func() {
		ms, validIdentityHeader = paginationTestSetup(11)
	})

	Describe("Subscription listing endpoint - returning 5 results", func() {
		It("Meta count should be 11, links should be populated", func() {

			baseEndpointUrl := SUBSCRIPTIONS_ENDPOINT

			var expectedResponse = paginatedResponse{
				Meta: meta{Count: 11},
				Links: navigationLinks{
					First: baseEndpointUrl + "?limit=5&offset=0",
					Last:  baseEndpointUrl + "?limit=5&offset=10",
					Next:  baseEndpointUrl + "?limit=5&offset=5",
					Prev:  "",
				},
				Data: []interface{}{},
			}

			runPaginationTest(baseEndpointUrl+"?offset=0&limit=5", ms, validIdentityHeader, expectedResponse)

			expectedResponse.Links.Prev = baseEndpointUrl + "?limit=5&offset=0"
			expectedResponse.Links.Next = baseEndpointUrl + "?limit=5&offset=7"

			runPaginationTest(baseEndpointUrl+"?offset=2&limit=5", ms, validIdentityHeader, expectedResponse)

			expectedResponse.Links.Prev = baseEndpointUrl + "?limit=5&offset=5"
			expectedResponse.Links.Next = ""

			runPaginationTest(baseEndpointUrl+"?offset=10&limit=5", ms, validIdentityHeader, expectedResponse)
		})
	})
})

var _ = Describe("Management API Pagination - 0 subscriptions total", func() {

	var (
		ms                  *ManagementServer
		validIdentityHeader string
	)

	BeforeEach(func() {
		ms, validIdentityHeader = paginationTestSetup(0)
	})

	Describe("Subscription listing endpoint - returning no results", func() {
		It("Meta count should be 0, links should be empty", func() {

			var expectedResponse = paginatedResponse{
				Meta:  meta{Count: 0},
				Links: navigationLinks{},
				Data:  []interface{}{},
			}

			runPaginationTest(SUBSCRIPTIONS_ENDPOINT+"?offset=0&limit=5", ms, validIdentityHeader, expectedResponse)
		})
	})
})

func paginationTestSetup(subscriptionCount int) (*ManagementServer, string) {
	apiMux := mux.NewRouter()
	cfg := config.GetConfig()

	registry := event_registry.NewLocalEventDefinitionRegistry(cfg.FallbackToDefaultTenant)
	subscriptions := subscription_repository.NewLocalSubscriptionRepository()
	channels := channel.NewLocalChannelRegistry()

	for i := 0; i < subscriptionCount; i++ {
		sub := domain.EventSubscription{
			ID:       domain.SubscriptionID("sub-" + strconv.Itoa(i)),
			EventKey: "OrderPlaced",
			Scope: domain.SubscriptionScope{
				Type:         domain.BoundToScope,
				ExecutionRef: domain.ExecutionRef("exec-" + strconv.Itoa(i)),
			},
		}
		subscriptions.Register(context.TODO(), sub)
	}

	managementServer := NewManagementServer(registry, subscriptions, channels, channels, apiMux, URL_BASE_PATH, cfg)
	managementServer.Routes()

	return managementServer, buildIdentityHeader("540155", "Associate")
}

func runPaginationTest(endpoint string, managementServer *ManagementServer, identityHeader string, expectedResponse paginatedResponse) {
	req, err := http.NewRequest("GET", endpoint, nil)
	Expect(err).NotTo(HaveOccurred())

	req.Header.Add(IDENTITY_HEADER_NAME, identityHeader)

	rr := httptest.NewRecorder()

	managementServer.router.ServeHTTP(rr, req)

	Expect(rr.Code).To(Equal(http.StatusOK))

	var actualResponse paginatedResponse
	json.Unmarshal(rr.Body.Bytes(), &actualResponse)

	Expect(actualResponse.Meta).Should(Equal(expectedResponse.Meta))
	Expect(actualResponse.Links).Should(Equal(expectedResponse.Links))
}
