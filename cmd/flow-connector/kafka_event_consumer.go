package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/FlowPlatform/flow-connector/internal/channel"
	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/controller/api"
	"github.com/FlowPlatform/flow-connector/internal/flow_connector"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"
	"github.com/FlowPlatform/flow-connector/internal/platform/queue"
	"github.com/FlowPlatform/flow-connector/internal/platform/utils"

	"github.com/gorilla/mux"
	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const channelKafkaHeaderKey = "channel"

func startKafkaEventConsumer(mgmtAddr string) {

	logger.InitLogger()

	logger.Log.Info("Starting Flow-Connector Kafka event consumer")

	cfg := config.GetConfig()
	logger.Log.Info("Flow-Connector configuration:\n", cfg)

	pipeline := buildEventPipeline(cfg)

	var saslConfig *queue.SaslConfig
	if cfg.KafkaUsername != "" {
		saslConfig = &queue.SaslConfig{
			SaslMechanism: cfg.KafkaSASLMechanism,
			SaslUsername:  cfg.KafkaUsername,
			SaslPassword:  cfg.KafkaPassword,
			KafkaCA:       cfg.KafkaCA,
		}
	}

	kafkaReader := queue.StartConsumer(&queue.ConsumerConfig{
		Brokers:    cfg.KafkaBrokers,
		SaslConfig: saslConfig,
		Topic:      cfg.KafkaEventsTopic,
		GroupID:    cfg.KafkaEventsGroupID,
	})

	eventProcessor := handleInboundEvent(pipeline.channelRegistry, pipeline.dispatcher, pipeline.actionHandler)

	shutdownCtx, shutdownCtxCancel := context.WithCancel(context.Background())
	defer shutdownCtxCancel()
	// If the kafka consumer runs into a fatal error, notify the
	// main thread so that it can shutdown the process
	fatalProcessingError := make(chan struct{})

	go consumeEventsFromKafka(shutdownCtx, kafkaReader, eventProcessor, fatalProcessingError)

	apiMux := mux.NewRouter()

	monitoringServer := api.NewMonitoringServer(apiMux, cfg)
	monitoringServer.Routes()

	apiSrv := utils.StartHTTPServer(mgmtAddr, "management", apiMux)

	signalChan := make(chan os.Signal, 1)

	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		logger.Log.Info("Received signal to shutdown: ", sig)
		shutdownCtxCancel() // Notify the consumer to shutdown
	case <-fatalProcessingError:
		logger.Log.Info("Received a fatal processing error...shutting down!")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HttpShutdownTimeout)
	defer cancel()

	utils.ShutdownHTTPServer(ctx, "management", apiSrv)

	kafkaReader.Close()

	logger.Log.Info("Flow-Connector shutting down")
}

func getHeaderValueAsString(headers []kafka.Header, headerName string) string {

	for _, header := range headers {
		if header.Key == headerName {
			return string(header.Value)
		}
	}

	return ""
}

// handleInboundEvent processes one event read off of the kafka topic.
// A bad event is logged and skipped; only infrastructure failures are
// returned to the caller.
func handleInboundEvent(channelLocator channel.ChannelLocator, dispatcher *flow_connector.EventDispatcher, actionHandler flow_connector.ActionHandler) func(context.Context, *kafka.Message) error {

	return func(ctx context.Context, msg *kafka.Message) error {

		channelKey := getHeaderValueAsString(msg.Headers, channelKafkaHeaderKey)

		log := logger.Log.WithFields(logrus.Fields{
			"channel":   channelKey,
			"partition": msg.Partition,
			"offset":    msg.Offset})

		log.Debug("Read event off of kafka topic")

		if channelKey == "" {
			log.Debug("Unable to process event.  Message does not have a channel header!")
			return nil
		}

		ch, err := channelLocator.GetChannel(ctx, channelKey)
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Debug("Unable to process event.  Unknown channel!")
			return nil
		}

		actions, err := dispatcher.DispatchEvent(ctx, ch, msg.Value)
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to dispatch event")
			return nil
		}

		return actionHandler.HandleActions(ctx, actions)
	}
}

func consumeEventsFromKafka(ctx context.Context, kafkaReader *kafka.Reader, process func(context.Context, *kafka.Message) error, fatalProcessingError chan struct{}) {

	for {
		msg, err := kafkaReader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Log.Debug("Kafka event consumer shutting down")
				return
			}
			logger.LogError("Error reading message from kafka", err)
			// Notify the main thread to shutdown
			fatalProcessingError <- struct{}{}
			return
		}

		if err := process(ctx, &msg); err != nil {
			logger.LogError("Error handling event", err)
			fatalProcessingError <- struct{}{}
			return
		}

		if err := kafkaReader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.LogError("Error committing message to kafka", err)
			fatalProcessingError <- struct{}{}
			return
		}
	}
}
