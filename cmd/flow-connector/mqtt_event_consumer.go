package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/FlowPlatform/flow-connector/internal/channel"
	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/controller/api"
	"github.com/FlowPlatform/flow-connector/internal/flow_connector"
	"github.com/FlowPlatform/flow-connector/internal/mqtt"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"
	"github.com/FlowPlatform/flow-connector/internal/platform/utils"
	"github.com/FlowPlatform/flow-connector/internal/platform/utils/jwt_utils"
	"github.com/FlowPlatform/flow-connector/internal/platform/utils/tls_utils"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func buildJwtGenerator(cfg *config.Config, mqttClientId string) (jwt_utils.JwtGenerator, error) {

	if cfg.MqttBrokerJwtGeneratorImpl == jwt_utils.RsaTokenGenerator {
		return jwt_utils.NewRSABasedJwtGenerator(cfg.JwtPrivateKeyFile, mqttClientId, cfg.JwtTokenExpiry)
	} else if cfg.MqttBrokerJwtGeneratorImpl == jwt_utils.FileTokenGenerator {
		return jwt_utils.NewFileBasedJwtGenerator(cfg.MqttBrokerJwtFile)
	} else {
		errorMsg := "Invalid JWT generator configured for the MQTT connection"
		logger.Log.Error(errorMsg)
		return nil, errors.New(errorMsg)
	}
}

func buildMqttClientId(cfg *config.Config) (string, error) {
	if cfg.MqttUseHostnameAsClientId == true {
		hostname, err := os.Hostname()
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to determine hostname to use as client_id for MQTT connection")
			return "", err
		}

		return hostname, nil
	} else if cfg.MqttClientId != "" {
		return cfg.MqttClientId, nil
	} else {
		errorMsg := "Unable to determine what to use as the client_id for MQTT connection"
		logger.Log.Error(errorMsg)
		return "", errors.New(errorMsg)
	}
}

func buildBrokerTlsConfigFuncList(cfg *config.Config) ([]tls_utils.TlsConfigFunc, error) {

	tlsConfigFuncs := []tls_utils.TlsConfigFunc{}

	if cfg.MqttBrokerTlsCertFile != "" && cfg.MqttBrokerTlsKeyFile != "" {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithCert(cfg.MqttBrokerTlsCertFile, cfg.MqttBrokerTlsKeyFile))
	} else if cfg.MqttBrokerTlsCertFile != "" || cfg.MqttBrokerTlsKeyFile != "" {
		return tlsConfigFuncs, errors.New("Cert or key file specified without the other")
	}

	if cfg.MqttBrokerTlsCACertFile != "" {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithCACerts(cfg.MqttBrokerTlsCACertFile))
	}

	if cfg.MqttBrokerTlsSkipVerify == true {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithSkipVerify())
	}

	return tlsConfigFuncs, nil
}

func buildDefaultMqttBrokerConfigFuncList(brokerUrl string, tlsConfig *tls.Config, cfg *config.Config) ([]mqtt.MqttClientOptionsFunc, error) {

	u, err := url.Parse(brokerUrl)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to determine protocol for the MQTT connection")
		return nil, err
	}

	brokerConfigFuncs := []mqtt.MqttClientOptionsFunc{}

	if tlsConfig != nil {
		brokerConfigFuncs = append(brokerConfigFuncs, mqtt.WithTlsConfig(tlsConfig))
	}

	mqttClientId, err := buildMqttClientId(cfg)
	if err != nil {
		return nil, err
	}

	brokerConfigFuncs = append(brokerConfigFuncs, mqtt.WithClientID(mqttClientId))

	if u.Scheme == "wss" {

		jwtGenerator, err := buildJwtGenerator(cfg, mqttClientId)

		if err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to instantiate a JWT generator for the MQTT connection")
			return nil, err
		}

		brokerConfigFuncs = append(brokerConfigFuncs, mqtt.WithJwtAsHttpHeader(jwtGenerator))
		brokerConfigFuncs = append(brokerConfigFuncs, mqtt.WithJwtReconnectingHandler(jwtGenerator))
	}

	brokerConfigFuncs = append(brokerConfigFuncs, mqtt.WithProtocolVersion(4))

	brokerConfigFuncs = append(brokerConfigFuncs, mqtt.WithCleanSession(cfg.MqttCleanSession))

	brokerConfigFuncs = append(brokerConfigFuncs, mqtt.WithConnectionLostHandler(logMqttConnectionLostHandler))

	return brokerConfigFuncs, nil
}

func logMqttConnectionLostHandler(client MQTT.Client, err error) {
	logger.Log.WithFields(logrus.Fields{"error": err}).Error("MQTT connection dropped")
}

func startMqttEventConsumer(mgmtAddr string) {

	logger.InitLogger()

	logger.Log.Info("Starting Flow-Connector MQTT event consumer")

	cfg := config.GetConfig()
	logger.Log.Info("Flow-Connector configuration:\n", cfg)

	pipeline := buildEventPipeline(cfg)

	tlsConfigFuncs, err := buildBrokerTlsConfigFuncList(cfg)
	if err != nil {
		logger.LogFatalError("TLS configuration error for MQTT Broker connection", err)
	}

	tlsConfig, err := tls_utils.NewTlsConfig(tlsConfigFuncs...)
	if err != nil {
		logger.LogFatalError("Unable to configure TLS for MQTT Broker connection", err)
	}

	mqttTopicBuilder := mqtt.NewTopicBuilder(cfg.MqttTopicPrefix)
	mqttTopicVerifier := mqtt.NewTopicVerifier(cfg.MqttTopicPrefix)

	eventMsgHandler := handleInboundEventMessage(mqttTopicVerifier,
		pipeline.channelRegistry, pipeline.dispatcher, pipeline.actionHandler)

	subscribers := []mqtt.Subscriber{
		mqtt.Subscriber{
			Topic:      mqttTopicBuilder.BuildIncomingWildcardEventTopic(),
			EntryPoint: eventMsgHandler,
			Qos:        cfg.MqttEventQoS,
		},
	}

	brokerOptions, err := buildDefaultMqttBrokerConfigFuncList(cfg.MqttBrokerAddress, tlsConfig, cfg)
	if err != nil {
		logger.LogFatalError("Unable to configure MQTT Broker connection", err)
	}

	mqttClient, err := mqtt.RegisterSubscribers(cfg.MqttBrokerAddress, subscribers, eventMsgHandler, brokerOptions...)
	if err != nil {
		logger.LogFatalError("Failed to connect to MQTT broker", err)
	}

	apiMux := mux.NewRouter()

	monitoringServer := api.NewMonitoringServer(apiMux, cfg)
	monitoringServer.Routes()

	apiSrv := utils.StartHTTPServer(mgmtAddr, "management", apiMux)

	signalChan := make(chan os.Signal, 1)

	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	logger.Log.Info("Received signal to shutdown: ", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HttpShutdownTimeout)
	defer cancel()

	utils.ShutdownHTTPServer(ctx, "management", apiSrv)

	mqttClient.Disconnect(cfg.MqttDisconnectQuiesceTime)

	logger.Log.Info("Flow-Connector shutting down")
}

func handleInboundEventMessage(topicVerifier *mqtt.TopicVerifier, channelLocator channel.ChannelLocator, dispatcher *flow_connector.EventDispatcher, actionHandler flow_connector.ActionHandler) MQTT.MessageHandler {

	return func(client MQTT.Client, message MQTT.Message) {

		ctx := context.Background()

		log := logger.Log.WithFields(logrus.Fields{"topic": message.Topic()})

		log.Debug("Received event on MQTT topic")

		channelKey, err := topicVerifier.VerifyIncomingTopic(message.Topic())
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Debug("Unable to process event.  Unable to parse topic!")
			return
		}

		ch, err := channelLocator.GetChannel(ctx, channelKey)
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Debug("Unable to process event.  Unknown channel!")
			return
		}

		actions, err := dispatcher.DispatchEvent(ctx, ch, message.Payload())
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to dispatch event")
			return
		}

		if err := actionHandler.HandleActions(ctx, actions); err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to deliver actions")
		}
	}
}
