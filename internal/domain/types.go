package domain

// TenantID is an opaque tenant identifier.  NoTenant identifies the
// default/global tenant.
type TenantID string

const NoTenant TenantID = ""

func (t TenantID) String() string {
	return string(t)
}

type EventKey string

func (k EventKey) String() string {
	return string(k)
}

type SubscriptionID string

func (s SubscriptionID) String() string {
	return string(s)
}

// ExecutionRef identifies a waiting process execution owned by the
// external runtime.
type ExecutionRef string

// ProcessDefinitionRef identifies a deployed process definition owned
// by the external runtime.
type ProcessDefinitionRef string

type PayloadType string

const (
	StringType  PayloadType = "string"
	IntegerType PayloadType = "integer"
	DoubleType  PayloadType = "double"
	BooleanType PayloadType = "boolean"
)

// EventField describes one extractable field of an event definition.
// Path is a slash separated extraction path into the raw payload.  An
// empty Path means the field is read from the top level key named Name.
type EventField struct {
	Name string      `json:"name" validate:"required"`
	Type PayloadType `json:"type" validate:"required"`
	Path string      `json:"path,omitempty"`
}

// EventDefinition is the versioned, tenant scoped schema for one event
// key.  At most one definition is active per (key, tenant) at a time.
// Deploying a new version retires the previous active version but keeps
// it addressable by version number.
type EventDefinition struct {
	Key                   EventKey     `json:"key" validate:"required"`
	TenantID              TenantID     `json:"tenant_id"`
	Version               int          `json:"version"`
	CorrelationParameters []EventField `json:"correlation_parameters"`
	PayloadFields         []EventField `json:"payload_fields"`
}

// EventInstance is one materialized occurrence of an event.  It is
// transient - built once per inbound event, handed to the correlation
// engine and never persisted.  TenantID is the tenant of the event
// itself, which may differ from the definition's tenant when the
// default tenant fallback resolved the definition.
type EventInstance struct {
	DefinitionKey     EventKey
	DefinitionTenant  TenantID
	DefinitionVersion int
	TenantID          TenantID
	CorrelationValues map[string]interface{}
	PayloadValues     map[string]interface{}
}

type UniquePolicy string

const (
	AllowMultiple        UniquePolicy = "allow_multiple"
	UniquePerCorrelation UniquePolicy = "unique_per_correlation"
)

type SubscriptionScopeType string

const (
	BoundToScope  SubscriptionScopeType = "bound_to"
	StartNewScope SubscriptionScopeType = "start_new"
)

// SubscriptionScope is a tagged variant.  BoundToScope carries an
// ExecutionRef, StartNewScope carries a ProcessDefinitionRef and a
// UniquePolicy.
type SubscriptionScope struct {
	Type                 SubscriptionScopeType `json:"type" validate:"required"`
	ExecutionRef         ExecutionRef          `json:"execution_ref,omitempty"`
	ProcessDefinitionRef ProcessDefinitionRef  `json:"process_definition_ref,omitempty"`
	UniquePolicy         UniquePolicy          `json:"unique_policy,omitempty"`
}

// EventSubscription is a registered interest in an event key / tenant /
// correlation combination.  CorrelationFilter is a partial assignment -
// correlation parameters missing from the filter are wildcards.
type EventSubscription struct {
	ID                SubscriptionID         `json:"id"`
	EventKey          EventKey               `json:"event_key" validate:"required"`
	TenantID          TenantID               `json:"tenant_id"`
	CorrelationFilter map[string]interface{} `json:"correlation_filter,omitempty"`
	Scope             SubscriptionScope      `json:"scope" validate:"required"`
}

type ActionType string

const (
	ResumeAction      ActionType = "resume"
	InstantiateAction ActionType = "instantiate"
	DroppedAction     ActionType = "dropped"
)

// Action is one element of the outcome of dispatching a single event.
// The action set for one dispatch is complete and order independent.
type Action struct {
	Type                 ActionType           `json:"type"`
	ExecutionRef         ExecutionRef         `json:"execution_ref,omitempty"`
	ProcessDefinitionRef ProcessDefinitionRef `json:"process_definition_ref,omitempty"`
	SubscriptionID       SubscriptionID       `json:"subscription_id,omitempty"`
	Event                *EventInstance       `json:"-"`
}

type TenantStrategyType string

const (
	FixedTenantStrategy  TenantStrategyType = "fixed"
	DetectTenantStrategy TenantStrategyType = "detect"
	NoTenantStrategy     TenantStrategyType = "none"
)

// TenantStrategy declares how an inbound channel determines the tenant
// of each event it delivers.
type TenantStrategy struct {
	Type      TenantStrategyType `json:"type" validate:"required"`
	TenantID  TenantID           `json:"tenant_id,omitempty"`
	FieldPath string             `json:"field_path,omitempty"`
}

type EventKeyStrategyType string

const (
	FixedEventKeyStrategy  EventKeyStrategyType = "fixed"
	DetectEventKeyStrategy EventKeyStrategyType = "detect"
)

// EventKeyStrategy declares how an inbound channel determines the event
// key of each event it delivers.
type EventKeyStrategy struct {
	Type      EventKeyStrategyType `json:"type" validate:"required"`
	EventKey  EventKey             `json:"event_key,omitempty"`
	FieldPath string               `json:"field_path,omitempty"`
}

// InboundChannel describes one event delivery channel.  Read only to
// the correlation core.
type InboundChannel struct {
	Key              string           `json:"key" validate:"required"`
	DeploymentTenant TenantID         `json:"deployment_tenant"`
	EventKeyStrategy EventKeyStrategy `json:"event_key_strategy" validate:"required"`
	TenantStrategy   TenantStrategy   `json:"tenant_strategy" validate:"required"`
}
