package main

import (
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {

	var listenAddr string

	// rootCmd represents the base command when called without any subcommands
	var rootCmd = &cobra.Command{
		Use: "flow-connector",
	}

	var apiServerCmd = &cobra.Command{
		Use:   "api_server",
		Short: "Management and event ingest API server",
		Run: func(cmd *cobra.Command, args []string) {
			startFlowConnectorApiServer(listenAddr)
		},
	}

	var kafkaEventConsumerCmd = &cobra.Command{
		Use:   "kafka_event_consumer",
		Short: "Kafka inbound event consumer",
		Run: func(cmd *cobra.Command, args []string) {
			startKafkaEventConsumer(listenAddr)
		},
	}

	var mqttEventConsumerCmd = &cobra.Command{
		Use:   "mqtt_event_consumer",
		Short: "MQTT inbound event consumer",
		Run: func(cmd *cobra.Command, args []string) {
			startMqttEventConsumer(listenAddr)
		},
	}

	rootCmd.AddCommand(apiServerCmd)
	apiServerCmd.Flags().StringVarP(&listenAddr, "listen-addr", "l", ":8080", "Hostname:port")

	rootCmd.AddCommand(kafkaEventConsumerCmd)
	kafkaEventConsumerCmd.Flags().StringVarP(&listenAddr, "listen-addr", "l", ":8081", "Hostname:port")

	rootCmd.AddCommand(mqttEventConsumerCmd)
	mqttEventConsumerCmd.Flags().StringVarP(&listenAddr, "listen-addr", "l", ":8082", "Hostname:port")

	return rootCmd
}

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
