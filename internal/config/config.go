package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ENV_PREFIX = "FLOW_CONNECTOR"

	URL_APP_NAME                   = "URL_App_Name"
	URL_PATH_PREFIX                = "URL_Path_Prefix"
	URL_BASE_PATH                  = "URL_Base_Path"
	OPENAPI_SPEC_FILE_PATH         = "OpenAPI_Spec_File_Path"
	HTTP_SHUTDOWN_TIMEOUT          = "HTTP_Shutdown_Timeout"
	SERVICE_TO_SERVICE_CREDENTIALS = "Service_To_Service_Credentials"
	PROFILE                        = "Enable_Profile"

	BROKERS                = "Kafka_Brokers"
	EVENTS_TOPIC           = "Kafka_Events_Topic"
	EVENTS_GROUP_ID        = "Kafka_Events_Group_Id"
	ACTIONS_TOPIC          = "Kafka_Actions_Topic"
	ACTIONS_BATCH_SIZE     = "Kafka_Actions_Batch_Size"
	ACTIONS_BATCH_BYTES    = "Kafka_Actions_Batch_Bytes"
	KAFKA_USERNAME         = "Kafka_Username"
	KAFKA_PASSWORD         = "Kafka_Password"
	KAFKA_SASL_MECHANISM   = "Kafka_SASL_Mechanism"
	KAFKA_CA               = "Kafka_CA"
	DEFAULT_BROKER_ADDRESS = "kafka:29092"

	MQTT_BROKER_ADDRESS            = "MQTT_Broker_Address"
	MQTT_TOPIC_PREFIX              = "MQTT_Topic_Prefix"
	MQTT_CLIENT_ID                 = "MQTT_Client_Id"
	MQTT_USE_HOSTNAME_AS_CLIENT_ID = "MQTT_Use_Hostname_As_Client_Id"
	MQTT_BROKER_JWT_GENERATOR_IMPL = "MQTT_Broker_JWT_Generator_Impl"
	MQTT_BROKER_JWT_FILE           = "MQTT_Broker_JWT_File"
	JWT_PRIVATE_KEY_FILE           = "JWT_Private_Key_File"
	JWT_TOKEN_EXPIRY               = "JWT_Token_Expiry_Minutes"
	MQTT_BROKER_TLS_CERT_FILE      = "MQTT_Broker_Tls_Cert_File"
	MQTT_BROKER_TLS_KEY_FILE       = "MQTT_Broker_Tls_Key_File"
	MQTT_BROKER_TLS_CA_CERT_FILE   = "MQTT_Broker_Tls_CA_Cert_File"
	MQTT_BROKER_TLS_SKIP_VERIFY    = "MQTT_Broker_Tls_Skip_Verify"
	MQTT_CLEAN_SESSION             = "MQTT_Clean_Session"
	MQTT_EVENT_QOS                 = "MQTT_Event_QoS"
	MQTT_DISCONNECT_QUIESCE_TIME   = "MQTT_Disconnect_Quiesce_Time"

	DATABASE_HOST          = "Database_Host"
	DATABASE_PORT          = "Database_Port"
	DATABASE_USER          = "Database_User"
	DATABASE_PASSWORD      = "Database_Password"
	DATABASE_NAME          = "Database_Name"
	DATABASE_SSL_MODE      = "Database_SSL_Mode"
	DATABASE_SSL_ROOT_CERT = "Database_SSL_Root_Cert"

	REDIS_ADDRESS  = "Redis_Address"
	REDIS_PASSWORD = "Redis_Password"
	REDIS_DB       = "Redis_DB"

	CHANNEL_CONFIG_FILE = "Channel_Config_File"

	TENANT_RESOLVER_IMPL         = "Tenant_Resolver_Impl"
	EVENT_REGISTRY_IMPL          = "Event_Registry_Impl"
	SUBSCRIPTION_REPOSITORY_IMPL = "Subscription_Repository_Impl"
	ACTION_HANDLER_IMPL          = "Action_Handler_Impl"

	TENANT_TRANSLATOR_URL        = "Tenant_Translator_URL"
	TENANT_TRANSLATOR_TIMEOUT    = "Tenant_Translator_Timeout"
	TENANT_TRANSLATOR_CACHE_SIZE = "Tenant_Translator_Cache_Size"
	TENANT_TRANSLATOR_CACHE_TTL  = "Tenant_Translator_Cache_TTL"

	FALLBACK_TO_DEFAULT_TENANT = "Fallback_To_Default_Tenant"
)

type Config struct {
	UrlAppName                  string
	UrlPathPrefix               string
	UrlBasePath                 string
	OpenApiSpecFilePath         string
	HttpShutdownTimeout         time.Duration
	ServiceToServiceCredentials map[string]interface{}
	Profile                     bool

	KafkaBrokers           []string
	KafkaEventsTopic       string
	KafkaEventsGroupID     string
	KafkaActionsTopic      string
	KafkaActionsBatchSize  int
	KafkaActionsBatchBytes int
	KafkaUsername          string
	KafkaPassword          string
	KafkaSASLMechanism     string
	KafkaCA                string

	MqttBrokerAddress          string
	MqttTopicPrefix            string
	MqttClientId               string
	MqttUseHostnameAsClientId  bool
	MqttBrokerJwtGeneratorImpl string
	MqttBrokerJwtFile          string
	JwtPrivateKeyFile          string
	JwtTokenExpiry             int
	MqttBrokerTlsCertFile      string
	MqttBrokerTlsKeyFile       string
	MqttBrokerTlsCACertFile    string
	MqttBrokerTlsSkipVerify    bool
	MqttCleanSession           bool
	MqttEventQoS               byte
	MqttDisconnectQuiesceTime  uint

	DatabaseHost        string
	DatabasePort        int
	DatabaseUser        string
	DatabasePassword    string
	DatabaseName        string
	DatabaseSslMode     string
	DatabaseSslRootCert string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	ChannelConfigFile string

	TenantResolverImpl         string
	EventRegistryImpl          string
	SubscriptionRepositoryImpl string
	ActionHandlerImpl          string

	TenantTranslatorURL       string
	TenantTranslatorTimeout   time.Duration
	TenantTranslatorCacheSize int
	TenantTranslatorCacheTTL  time.Duration

	FallbackToDefaultTenant bool
}

func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", URL_PATH_PREFIX, c.UrlPathPrefix)
	fmt.Fprintf(&b, "%s: %s\n", URL_APP_NAME, c.UrlAppName)
	fmt.Fprintf(&b, "%s: %s\n", URL_BASE_PATH, c.UrlBasePath)
	fmt.Fprintf(&b, "%s: %s\n", OPENAPI_SPEC_FILE_PATH, c.OpenApiSpecFilePath)
	fmt.Fprintf(&b, "%s: %s\n", HTTP_SHUTDOWN_TIMEOUT, c.HttpShutdownTimeout)
	fmt.Fprintf(&b, "%s: %t\n", PROFILE, c.Profile)
	fmt.Fprintf(&b, "%s: %s\n", BROKERS, c.KafkaBrokers)
	fmt.Fprintf(&b, "%s: %s\n", EVENTS_TOPIC, c.KafkaEventsTopic)
	fmt.Fprintf(&b, "%s: %s\n", EVENTS_GROUP_ID, c.KafkaEventsGroupID)
	fmt.Fprintf(&b, "%s: %s\n", ACTIONS_TOPIC, c.KafkaActionsTopic)
	fmt.Fprintf(&b, "%s: %d\n", ACTIONS_BATCH_SIZE, c.KafkaActionsBatchSize)
	fmt.Fprintf(&b, "%s: %d\n", ACTIONS_BATCH_BYTES, c.KafkaActionsBatchBytes)
	fmt.Fprintf(&b, "%s: %s\n", KAFKA_SASL_MECHANISM, c.KafkaSASLMechanism)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_ADDRESS, c.MqttBrokerAddress)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_TOPIC_PREFIX, c.MqttTopicPrefix)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_CLIENT_ID, c.MqttClientId)
	fmt.Fprintf(&b, "%s: %t\n", MQTT_USE_HOSTNAME_AS_CLIENT_ID, c.MqttUseHostnameAsClientId)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_JWT_GENERATOR_IMPL, c.MqttBrokerJwtGeneratorImpl)
	fmt.Fprintf(&b, "%s: %s\n", DATABASE_HOST, c.DatabaseHost)
	fmt.Fprintf(&b, "%s: %d\n", DATABASE_PORT, c.DatabasePort)
	fmt.Fprintf(&b, "%s: %s\n", DATABASE_NAME, c.DatabaseName)
	fmt.Fprintf(&b, "%s: %s\n", DATABASE_SSL_MODE, c.DatabaseSslMode)
	fmt.Fprintf(&b, "%s: %s\n", REDIS_ADDRESS, c.RedisAddress)
	fmt.Fprintf(&b, "%s: %d\n", REDIS_DB, c.RedisDB)
	fmt.Fprintf(&b, "%s: %s\n", CHANNEL_CONFIG_FILE, c.ChannelConfigFile)
	fmt.Fprintf(&b, "%s: %s\n", TENANT_RESOLVER_IMPL, c.TenantResolverImpl)
	fmt.Fprintf(&b, "%s: %s\n", EVENT_REGISTRY_IMPL, c.EventRegistryImpl)
	fmt.Fprintf(&b, "%s: %s\n", SUBSCRIPTION_REPOSITORY_IMPL, c.SubscriptionRepositoryImpl)
	fmt.Fprintf(&b, "%s: %s\n", ACTION_HANDLER_IMPL, c.ActionHandlerImpl)
	fmt.Fprintf(&b, "%s: %s\n", TENANT_TRANSLATOR_URL, c.TenantTranslatorURL)
	fmt.Fprintf(&b, "%s: %t\n", FALLBACK_TO_DEFAULT_TENANT, c.FallbackToDefaultTenant)

	return b.String()
}

func GetConfig() *Config {
	options := viper.New()

	options.SetDefault(URL_PATH_PREFIX, "api")
	options.SetDefault(URL_APP_NAME, "flow-connector")
	options.SetDefault(OPENAPI_SPEC_FILE_PATH, "/opt/app-root/src/api/api.spec.file")
	options.SetDefault(HTTP_SHUTDOWN_TIMEOUT, 2)
	options.SetDefault(SERVICE_TO_SERVICE_CREDENTIALS, "")
	options.SetDefault(PROFILE, false)

	options.SetDefault(BROKERS, []string{DEFAULT_BROKER_ADDRESS})
	options.SetDefault(EVENTS_TOPIC, "platform.flow-connector.events")
	options.SetDefault(EVENTS_GROUP_ID, "flow-connector-consumer")
	options.SetDefault(ACTIONS_TOPIC, "platform.flow-connector.actions")
	options.SetDefault(ACTIONS_BATCH_SIZE, 100)
	options.SetDefault(ACTIONS_BATCH_BYTES, 1048576)
	options.SetDefault(KAFKA_USERNAME, "")
	options.SetDefault(KAFKA_PASSWORD, "")
	options.SetDefault(KAFKA_SASL_MECHANISM, "")
	options.SetDefault(KAFKA_CA, "")

	options.SetDefault(MQTT_BROKER_ADDRESS, "ssl://localhost:8883")
	options.SetDefault(MQTT_TOPIC_PREFIX, "flow")
	options.SetDefault(MQTT_CLIENT_ID, "")
	options.SetDefault(MQTT_USE_HOSTNAME_AS_CLIENT_ID, false)
	options.SetDefault(MQTT_BROKER_JWT_GENERATOR_IMPL, "jwt_file_reader")
	options.SetDefault(MQTT_BROKER_JWT_FILE, "flow-broker-jwt.txt")
	options.SetDefault(JWT_PRIVATE_KEY_FILE, "")
	options.SetDefault(JWT_TOKEN_EXPIRY, 1)
	options.SetDefault(MQTT_BROKER_TLS_CERT_FILE, "")
	options.SetDefault(MQTT_BROKER_TLS_KEY_FILE, "")
	options.SetDefault(MQTT_BROKER_TLS_CA_CERT_FILE, "")
	options.SetDefault(MQTT_BROKER_TLS_SKIP_VERIFY, false)
	options.SetDefault(MQTT_CLEAN_SESSION, false)
	options.SetDefault(MQTT_EVENT_QOS, 1)
	options.SetDefault(MQTT_DISCONNECT_QUIESCE_TIME, 1000)

	options.SetDefault(DATABASE_HOST, "localhost")
	options.SetDefault(DATABASE_PORT, 5432)
	options.SetDefault(DATABASE_USER, "flow")
	options.SetDefault(DATABASE_PASSWORD, "flow")
	options.SetDefault(DATABASE_NAME, "flow-connector")
	options.SetDefault(DATABASE_SSL_MODE, "disable")
	options.SetDefault(DATABASE_SSL_ROOT_CERT, "db_ssl_root_cert.pem")

	options.SetDefault(REDIS_ADDRESS, "localhost:6379")
	options.SetDefault(REDIS_PASSWORD, "")
	options.SetDefault(REDIS_DB, 0)

	options.SetDefault(CHANNEL_CONFIG_FILE, "channels.json")

	options.SetDefault(TENANT_RESOLVER_IMPL, "channel")
	options.SetDefault(EVENT_REGISTRY_IMPL, "local")
	options.SetDefault(SUBSCRIPTION_REPOSITORY_IMPL, "local")
	options.SetDefault(ACTION_HANDLER_IMPL, "log")

	options.SetDefault(TENANT_TRANSLATOR_URL, "http://localhost:8892")
	options.SetDefault(TENANT_TRANSLATOR_TIMEOUT, 10)
	options.SetDefault(TENANT_TRANSLATOR_CACHE_SIZE, 1000)
	options.SetDefault(TENANT_TRANSLATOR_CACHE_TTL, 300)

	options.SetDefault(FALLBACK_TO_DEFAULT_TENANT, false)

	options.SetEnvPrefix(ENV_PREFIX)
	options.AutomaticEnv()

	return &Config{
		UrlPathPrefix:               options.GetString(URL_PATH_PREFIX),
		UrlAppName:                  options.GetString(URL_APP_NAME),
		UrlBasePath:                 buildUrlBasePath(options.GetString(URL_PATH_PREFIX), options.GetString(URL_APP_NAME)),
		OpenApiSpecFilePath:         options.GetString(OPENAPI_SPEC_FILE_PATH),
		HttpShutdownTimeout:         options.GetDuration(HTTP_SHUTDOWN_TIMEOUT) * time.Second,
		ServiceToServiceCredentials: options.GetStringMap(SERVICE_TO_SERVICE_CREDENTIALS),
		Profile:                     options.GetBool(PROFILE),

		KafkaBrokers:           options.GetStringSlice(BROKERS),
		KafkaEventsTopic:       options.GetString(EVENTS_TOPIC),
		KafkaEventsGroupID:     options.GetString(EVENTS_GROUP_ID),
		KafkaActionsTopic:      options.GetString(ACTIONS_TOPIC),
		KafkaActionsBatchSize:  options.GetInt(ACTIONS_BATCH_SIZE),
		KafkaActionsBatchBytes: options.GetInt(ACTIONS_BATCH_BYTES),
		KafkaUsername:          options.GetString(KAFKA_USERNAME),
		KafkaPassword:          options.GetString(KAFKA_PASSWORD),
		KafkaSASLMechanism:     options.GetString(KAFKA_SASL_MECHANISM),
		KafkaCA:                options.GetString(KAFKA_CA),

		MqttBrokerAddress:          options.GetString(MQTT_BROKER_ADDRESS),
		MqttTopicPrefix:            options.GetString(MQTT_TOPIC_PREFIX),
		MqttClientId:               options.GetString(MQTT_CLIENT_ID),
		MqttUseHostnameAsClientId:  options.GetBool(MQTT_USE_HOSTNAME_AS_CLIENT_ID),
		MqttBrokerJwtGeneratorImpl: options.GetString(MQTT_BROKER_JWT_GENERATOR_IMPL),
		MqttBrokerJwtFile:          options.GetString(MQTT_BROKER_JWT_FILE),
		JwtPrivateKeyFile:          options.GetString(JWT_PRIVATE_KEY_FILE),
		JwtTokenExpiry:             options.GetInt(JWT_TOKEN_EXPIRY),
		MqttBrokerTlsCertFile:      options.GetString(MQTT_BROKER_TLS_CERT_FILE),
		MqttBrokerTlsKeyFile:       options.GetString(MQTT_BROKER_TLS_KEY_FILE),
		MqttBrokerTlsCACertFile:    options.GetString(MQTT_BROKER_TLS_CA_CERT_FILE),
		MqttBrokerTlsSkipVerify:    options.GetBool(MQTT_BROKER_TLS_SKIP_VERIFY),
		MqttCleanSession:           options.GetBool(MQTT_CLEAN_SESSION),
		MqttEventQoS:               byte(options.GetInt(MQTT_EVENT_QOS)),
		MqttDisconnectQuiesceTime:  options.GetUint(MQTT_DISCONNECT_QUIESCE_TIME),

		DatabaseHost:        options.GetString(DATABASE_HOST),
		DatabasePort:        options.GetInt(DATABASE_PORT),
		DatabaseUser:        options.GetString(DATABASE_USER),
		DatabasePassword:    options.GetString(DATABASE_PASSWORD),
		DatabaseName:        options.GetString(DATABASE_NAME),
		DatabaseSslMode:     options.GetString(DATABASE_SSL_MODE),
		DatabaseSslRootCert: options.GetString(DATABASE_SSL_ROOT_CERT),

		RedisAddress:  options.GetString(REDIS_ADDRESS),
		RedisPassword: options.GetString(REDIS_PASSWORD),
		RedisDB:       options.GetInt(REDIS_DB),

		ChannelConfigFile: options.GetString(CHANNEL_CONFIG_FILE),

		TenantResolverImpl:         options.GetString(TENANT_RESOLVER_IMPL),
		EventRegistryImpl:          options.GetString(EVENT_REGISTRY_IMPL),
		SubscriptionRepositoryImpl: options.GetString(SUBSCRIPTION_REPOSITORY_IMPL),
		ActionHandlerImpl:          options.GetString(ACTION_HANDLER_IMPL),

		TenantTranslatorURL:       options.GetString(TENANT_TRANSLATOR_URL),
		TenantTranslatorTimeout:   options.GetDuration(TENANT_TRANSLATOR_TIMEOUT) * time.Second,
		TenantTranslatorCacheSize: options.GetInt(TENANT_TRANSLATOR_CACHE_SIZE),
		TenantTranslatorCacheTTL:  options.GetDuration(TENANT_TRANSLATOR_CACHE_TTL) * time.Second,

		FallbackToDefaultTenant: options.GetBool(FALLBACK_TO_DEFAULT_TENANT),
	}
}

func buildUrlBasePath(pathPrefix string, appName string) string {
	return fmt.Sprintf("/%s/%s/v1", pathPrefix, appName)
}
