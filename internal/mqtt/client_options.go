package mqtt

import (
	"context"
	"crypto/tls"
	"net/http"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/FlowPlatform/flow-connector/internal/platform/logger"
	"github.com/FlowPlatform/flow-connector/internal/platform/utils/jwt_utils"

	"github.com/sirupsen/logrus"
)

const brokerTokenHeader = "X-Flow-Broker-Token"

type MqttClientOptionsFunc func(*MQTT.ClientOptions) error

func WithJwtAsHttpHeader(tokenGenerator jwt_utils.JwtGenerator) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		headers := http.Header{}
		jwtToken, err := tokenGenerator(context.Background())

		if err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to retrieve the JWT Token for the MQTT broker connection")
			return err
		}

		headers.Add(brokerTokenHeader, jwtToken)
		opts.SetHTTPHeaders(headers)

		return nil
	}
}

func WithJwtReconnectingHandler(tokenGenerator jwt_utils.JwtGenerator) MqttClientOptionsFunc {
	// The 'reconnecting' handler is called prior to a reconnection
	// attempt - refresh the token before paho presents it again
	return func(opts *MQTT.ClientOptions) error {
		opts.SetReconnectingHandler(func(client MQTT.Client, opts *MQTT.ClientOptions) {
			logger.Log.Debug("Refreshing the JWT token for the MQTT broker reconnection")

			jwtToken, err := tokenGenerator(context.Background())
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to refresh the JWT Token for the MQTT broker connection")
				return
			}

			headers := http.Header{}
			headers.Add(brokerTokenHeader, jwtToken)
			opts.SetHTTPHeaders(headers)
		})

		return nil
	}
}

func WithTlsConfig(tlsConfig *tls.Config) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetTLSConfig(tlsConfig)
		return nil
	}
}

func WithClientID(clientID string) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetClientID(clientID)
		return nil
	}
}

func WithCleanSession(cleanSession bool) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetCleanSession(cleanSession)
		return nil
	}
}

func WithProtocolVersion(protocolVersion uint) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetProtocolVersion(protocolVersion)
		return nil
	}
}

func WithOnConnectHandler(handler MQTT.OnConnectHandler) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetOnConnectHandler(handler)
		return nil
	}
}

func WithConnectionLostHandler(handler MQTT.ConnectionLostHandler) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetConnectionLostHandler(handler)
		return nil
	}
}

func WithDefaultPublishHandler(handler MQTT.MessageHandler) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetDefaultPublishHandler(handler)
		return nil
	}
}
