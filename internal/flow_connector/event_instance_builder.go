package flow_connector

import (
	"fmt"
	"math"

	"github.com/FlowPlatform/flow-connector/internal/channel"
	"github.com/FlowPlatform/flow-connector/internal/domain"
)

// MaterializationError reports a type coercion failure for one declared
// field.  No partial event instance escapes when it is returned.
type MaterializationError struct {
	Field        string
	DeclaredType domain.PayloadType
	Value        interface{}
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("unable to coerce field %q to %s (got %T)", e.Field, e.DeclaredType, e.Value)
}

// EventInstanceBuilder materializes raw payloads into event instances
// by applying an event definition's schema.  The schema is a projection
// not a strict validator: declared fields missing from the payload are
// simply absent from the result and undeclared payload fields are
// ignored, which lets one raw payload carry superset fields consumed
// differently per tenant.
type EventInstanceBuilder struct {
}

func NewEventInstanceBuilder() *EventInstanceBuilder {
	return &EventInstanceBuilder{}
}

func (b *EventInstanceBuilder) Build(def domain.EventDefinition, payload channel.RawPayload, resolvedTenant domain.TenantID) (*domain.EventInstance, error) {

	correlationValues, err := extractFields(def.CorrelationParameters, payload)
	if err != nil {
		return nil, err
	}

	payloadValues, err := extractFields(def.PayloadFields, payload)
	if err != nil {
		return nil, err
	}

	return &domain.EventInstance{
		DefinitionKey:     def.Key,
		DefinitionTenant:  def.TenantID,
		DefinitionVersion: def.Version,
		TenantID:          resolvedTenant,
		CorrelationValues: correlationValues,
		PayloadValues:     payloadValues,
	}, nil
}

func extractFields(fields []domain.EventField, payload channel.RawPayload) (map[string]interface{}, error) {

	values := make(map[string]interface{})

	for _, field := range fields {
		path := field.Path
		if path == "" {
			path = field.Name
		}

		raw, found := payload.Lookup(path)
		if !found {
			continue
		}

		value, err := coerceValue(field, raw)
		if err != nil {
			return nil, err
		}

		values[field.Name] = value
	}

	return values, nil
}

// coerceValue converts a raw JSON value to the field's declared type.
// JSON numbers arrive from the payload accessor as float64.
func coerceValue(field domain.EventField, raw interface{}) (interface{}, error) {

	switch field.Type {

	case domain.StringType:
		if s, ok := raw.(string); ok {
			return s, nil
		}

	case domain.IntegerType:
		if f, ok := raw.(float64); ok && f == math.Trunc(f) {
			return int64(f), nil
		}

	case domain.DoubleType:
		if f, ok := raw.(float64); ok {
			return f, nil
		}

	case domain.BooleanType:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	}

	return nil, &MaterializationError{Field: field.Name, DeclaredType: field.Type, Value: raw}
}
