// Package telemetry publishes API, delivery and source metrics to CloudWatch.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"wpre/internal/config"
	"wpre/internal/types"
)

// putTimeout bounds each PutMetricData call made without a caller context.
const putTimeout = 2 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// NewCloudWatchClient loads the default AWS credential chain for the
// configured region. A non-empty EndpointURL points the client at LocalStack.
func NewCloudWatchClient(ctx context.Context, cfg config.ObservabilityConfig) (*cloudwatch.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	}), nil
}

// CloudWatchMetrics implements the request, delivery and source-failure
// recorders. Publishing failures are logged and never returned.
//
// Metrics emitted:
//   - APILatency, APIRequestCount: Dims {Method, Endpoint, Status}
//   - DeliveryAttempt: Dims {Result}
//   - DeliveryLatency: no dims
//   - DispatchDropped: Dims {Result}
//   - SourceFailure: Dims {Kind}
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a publisher for the given namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordRequest emits latency and count for one HTTP request.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()

	dims := []cwtypes.Dimension{
		dim(types.DimMethod, method),
		dim(types.DimEndpoint, endpoint),
		dim(types.DimStatus, status),
	}
	m.put(ctx, "request",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
	)
}

// RecordDelivery emits the outcome and latency of one downstream delivery.
func (m *CloudWatchMetrics) RecordDelivery(ctx context.Context, result string, latency time.Duration) {
	m.put(ctx, "delivery",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricDeliveryAttempt),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{dim(types.DimResult, result)},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricDeliveryLatency),
			Value:      aws.Float64(float64(latency.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
		},
	)
}

// RecordDropped counts a notification that never reached a worker.
func (m *CloudWatchMetrics) RecordDropped(ctx context.Context, reason string) {
	m.put(ctx, "dropped", cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDispatchDropped),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimResult, reason)},
	})
}

// RecordSourceFailure counts a failed weather source fetch.
func (m *CloudWatchMetrics) RecordSourceFailure(ctx context.Context, kind types.ForecastKind) {
	m.put(ctx, "source failure", cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricSourceFailure),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimKind, string(kind))},
	})
}

func (m *CloudWatchMetrics) put(ctx context.Context, what string, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record "+what+" metric", "error", err.Error())
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
