package flow_connector

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/FlowPlatform/flow-connector/internal/config"
	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"
	"github.com/FlowPlatform/flow-connector/internal/platform/queue"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// ActionHandler hands the outcome of one dispatch to the external
// process runtime.  The runtime turns Resume into execution
// continuation and Instantiate into a new process instance.
type ActionHandler interface {
	HandleActions(ctx context.Context, actions []domain.Action) error
}

func NewActionHandler(actionHandlerImpl string, cfg *config.Config) (ActionHandler, error) {
	switch actionHandlerImpl {
	case "kafka":
		var saslConfig *queue.SaslConfig
		if cfg.KafkaUsername != "" {
			saslConfig = &queue.SaslConfig{
				SaslMechanism: cfg.KafkaSASLMechanism,
				SaslUsername:  cfg.KafkaUsername,
				SaslPassword:  cfg.KafkaPassword,
				KafkaCA:       cfg.KafkaCA,
			}
		}

		kafkaProducer := queue.StartProducer(&queue.ProducerConfig{
			Brokers:    cfg.KafkaBrokers,
			SaslConfig: saslConfig,
			Topic:      cfg.KafkaActionsTopic,
			BatchSize:  cfg.KafkaActionsBatchSize,
			BatchBytes: cfg.KafkaActionsBatchBytes,
			Balancer:   "hash",
		})

		return &KafkaActionPublisher{writer: kafkaProducer}, nil
	case "log":
		return &LoggingActionHandler{}, nil
	default:
		return nil, errors.New("Invalid ActionHandler impl requested")
	}
}

// LoggingActionHandler logs the actions.  Used for development and in
// the synchronous http ingest path where the actions are returned to
// the caller anyway.
type LoggingActionHandler struct {
}

func (h *LoggingActionHandler) HandleActions(ctx context.Context, actions []domain.Action) error {
	for _, action := range actions {
		logger.Log.WithFields(logrus.Fields{
			"action":                 action.Type,
			"execution_ref":          action.ExecutionRef,
			"process_definition_ref": action.ProcessDefinitionRef,
			"subscription_id":        action.SubscriptionID,
		}).Info("Dispatch outcome")
	}
	return nil
}

type actionEnvelope struct {
	Type                 domain.ActionType           `json:"type"`
	ExecutionRef         domain.ExecutionRef         `json:"execution_ref,omitempty"`
	ProcessDefinitionRef domain.ProcessDefinitionRef `json:"process_definition_ref,omitempty"`
	SubscriptionID       domain.SubscriptionID       `json:"subscription_id,omitempty"`
	EventKey             domain.EventKey             `json:"event_key"`
	TenantID             domain.TenantID             `json:"tenant_id"`
	CorrelationValues    map[string]interface{}      `json:"correlation_values,omitempty"`
	PayloadValues        map[string]interface{}      `json:"payload_values,omitempty"`
}

// KafkaActionPublisher forwards resume and instantiate actions to the
// actions topic for the process runtime to apply.  Dropped actions are
// counted, not published.
type KafkaActionPublisher struct {
	writer *kafka.Writer
}

func NewKafkaActionPublisher(writer *kafka.Writer) *KafkaActionPublisher {
	return &KafkaActionPublisher{writer: writer}
}

func (p *KafkaActionPublisher) HandleActions(ctx context.Context, actions []domain.Action) error {

	messages := make([]kafka.Message, 0, len(actions))

	for _, action := range actions {
		if action.Type == domain.DroppedAction {
			continue
		}

		envelope := actionEnvelope{
			Type:                 action.Type,
			ExecutionRef:         action.ExecutionRef,
			ProcessDefinitionRef: action.ProcessDefinitionRef,
			SubscriptionID:       action.SubscriptionID,
		}
		if action.Event != nil {
			envelope.EventKey = action.Event.DefinitionKey
			envelope.TenantID = action.Event.TenantID
			envelope.CorrelationValues = action.Event.CorrelationValues
			envelope.PayloadValues = action.Event.PayloadValues
		}

		envelopeJson, err := json.Marshal(envelope)
		if err != nil {
			logger.LogError("Unable to marshal action envelope", err)
			return err
		}

		messages = append(messages, kafka.Message{
			// Key the message by tenant and event key so actions for
			// one tenant/key land on the same partition in order
			Key:   []byte(string(envelope.TenantID) + ":" + string(envelope.EventKey)),
			Value: envelopeJson,
		})
	}

	if len(messages) == 0 {
		return nil
	}

	err := p.writer.WriteMessages(ctx, messages...)
	if err != nil {
		logger.LogError("Unable to publish actions to kafka", err)
		return err
	}

	return nil
}
