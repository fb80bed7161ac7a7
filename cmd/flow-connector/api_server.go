package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/FlowPlatform/flow-connector/internal/controller/api"
	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"
	"github.com/FlowPlatform/flow-connector/internal/platform/utils"
	"github.com/redhatinsights/platform-go-middlewares/request_id"

	"github.com/gorilla/mux"
)

func startFlowConnectorApiServer(mgmtAddr string) {

	logger.InitLogger()

	logger.Log.Info("Starting Flow-Connector API server")

	cfg := config.GetConfig()
	logger.Log.Info("Flow-Connector configuration:\n", cfg)

	pipeline := buildEventPipeline(cfg)

	apiMux := mux.NewRouter()
	apiMux.Use(request_id.ConfiguredRequestID("x-flow-request-id"))

	apiSpecServer := api.NewApiSpecServer(apiMux, cfg.UrlBasePath, cfg.OpenApiSpecFilePath)
	apiSpecServer.Routes()

	monitoringServer := api.NewMonitoringServer(apiMux, cfg)
	monitoringServer.Routes()

	mgmtServer := api.NewManagementServer(pipeline.registry, pipeline.subscriptions,
		pipeline.channelRegistry, pipeline.channelRegistry, apiMux, cfg.UrlBasePath, cfg)
	mgmtServer.Routes()

	ingestServer := api.NewIngestServer(pipeline.dispatcher, pipeline.channelRegistry,
		apiMux, cfg.UrlBasePath, cfg)
	ingestServer.Routes()

	apiSrv := utils.StartHTTPServer(mgmtAddr, "management", apiMux)

	signalChan := make(chan os.Signal, 1)

	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	logger.Log.Info("Received signal to shutdown: ", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HttpShutdownTimeout)
	defer cancel()

	utils.ShutdownHTTPServer(ctx, "management", apiSrv)

	logger.Log.Info("Flow-Connector shutting down")
}
