package main

import (
	"encoding/json"
	"fmt"
	"github.com/function61/gokit/envvar"
	"github.com/function61/gokit/logger"
	"github.com/laphir/mitherm/pkg/mithermtypes"
	"github.com/laphir/mitherm/pkg/sqsfacade"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"net/http"
	"time"
)

func metricsServer(conf mithermtypes.SqsOutputConfig) error {
	log := logger.New("metrics-server")

	temperature, humidity, battery := initializeMetrics()

	http.Handle("/metrics", promhttp.Handler())

	go func() {
		log.Error(http.ListenAndServe(":80", nil).Error())
	}()

	queue := sqsfacade.New(conf)

	for {
		received, err := queue.Receive()
		if err != nil {
			log.Error(err.Error())
			time.Sleep(1 * time.Second) // prevent hot loop
			continue
		}

		for _, item := range received.Messages {
			reading := &mithermtypes.ResolvedReading{}
			if err := json.Unmarshal([]byte(*item.Body), reading); err != nil {
				log.Error(fmt.Sprintf("error processing %s", *item.Body))
				continue
			}

			sensorLabels := prometheus.Labels{
				"sensor": reading.SensorAddr,
				"name":   reading.SensorName,
			}

			switch reading.Kind {
			case "temperature":
				temperature.With(sensorLabels).Set(float64(reading.Value))
			case "humidity":
				humidity.With(sensorLabels).Set(float64(reading.Value))
			case "battery":
				battery.With(sensorLabels).Set(float64(reading.Value))
			}
		}

		if err := queue.AckReceived(received); err != nil {
			log.Error(err.Error())
		}
	}
}

func metricsServerEntry() *cobra.Command {
	return &cobra.Command{
		Use:   "metricsserver",
		Short: "Serves metrics downloaded from SQS messages",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := getConfigFromEnv()
			if err != nil {
				panic(err)
			}

			if err := metricsServer(*conf); err != nil {
				panic(err)
			}
		},
	}
}

func getConfigFromEnv() (*mithermtypes.SqsOutputConfig, error) {
	queueUrl, err := envvar.Get("QUEUE_URL")
	if err != nil {
		return nil, err
	}

	accessKeyId, err := envvar.Get("AWS_ACCESS_KEY_ID")
	if err != nil {
		return nil, err
	}

	accessKeySecret, err := envvar.Get("AWS_SECRET_ACCESS_KEY")
	if err != nil {
		return nil, err
	}

	return &mithermtypes.SqsOutputConfig{
		QueueUrl:           queueUrl,
		AwsAccessKeyId:     accessKeyId,
		AwsAccessKeySecret: accessKeySecret,
	}, nil
}

func initializeMetrics() (*prometheus.GaugeVec, *prometheus.GaugeVec, *prometheus.GaugeVec) {
	labels := []string{"sensor", "name"}

	temperature := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mitherm_temperature",
			Help: "LYWSD02: temperature, celsius",
		},
		labels)
	prometheus.MustRegister(temperature)

	humidity := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mitherm_humidity",
			Help: "LYWSD02: relative humidity, percent",
		},
		labels)
	prometheus.MustRegister(humidity)

	battery := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mitherm_battery",
			Help: "LYWSD02: battery, percent",
		},
		labels)
	prometheus.MustRegister(battery)

	return temperature, humidity, battery
}
