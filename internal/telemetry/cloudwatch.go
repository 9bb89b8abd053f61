// Package telemetry publishes service metrics to CloudWatch.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"daypass/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Recorder is the full metrics surface used by the binaries.
type Recorder interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
	RecordActivation(ctx context.Context, status types.ActivationStatus, channel types.IssuanceChannel)
	RecordEscalation(ctx context.Context)
	RecordReminder(ctx context.Context, status types.ReminderStatus)
}

var (
	_ Recorder = (*CloudWatchMetrics)(nil)
	_ Recorder = NoopMetrics{}
)

// CloudWatchMetrics emits:
//   - APIRequests and APILatency: Dims {Endpoint, Status}
//   - ActivationOutcome: Dims {Result, Channel}
//   - OperatorEscalation: no dims
//   - RenewalReminder: Dims {Result}
//
// Publishing failures are logged and never returned.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics. An empty namespace uses
// types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, timeout: 2 * time.Second, logger: logger}
}

// RecordRequest implements core.MetricsCollector.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{dim(types.DimEndpoint, method+" "+endpoint), dim(types.DimStatus, status)}
	m.put(context.Background(), "request",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequests),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	)
}

// RecordActivation counts one activation outcome.
func (m *CloudWatchMetrics) RecordActivation(ctx context.Context, status types.ActivationStatus, channel types.IssuanceChannel) {
	m.put(ctx, "activation", count(types.MetricActivationOutcome,
		dim(types.DimResult, string(status)),
		dim(types.DimChannel, string(channel)),
	))
}

// RecordEscalation counts one operator warning.
func (m *CloudWatchMetrics) RecordEscalation(ctx context.Context) {
	m.put(ctx, "escalation", count(types.MetricOperatorEscalation))
}

// RecordReminder counts one renewal reminder outcome.
func (m *CloudWatchMetrics) RecordReminder(ctx context.Context, status types.ReminderStatus) {
	m.put(ctx, "reminder", count(types.MetricRenewalReminder, dim(types.DimResult, string(status))))
}

func (m *CloudWatchMetrics) put(ctx context.Context, kind string, data ...cwtypes.MetricDatum) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.Warn("failed to publish metric", "kind", kind, "error", err)
	}
}

func count(name string, dims ...cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordRequest(string, string, string, time.Duration)                             {}
func (NoopMetrics) RecordActivation(context.Context, types.ActivationStatus, types.IssuanceChannel) {}
func (NoopMetrics) RecordEscalation(context.Context)                                                {}
func (NoopMetrics) RecordReminder(context.Context, types.ReminderStatus)                            {}
