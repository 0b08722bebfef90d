// Package telemetry records per-run metrics in CloudWatch.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"agroia/internal/types"
)

// Metric and dimension names.
const (
	MetricRunCompleted  = "RecommendationRun"
	MetricRunLatency    = "RecommendationLatency"
	MetricViableCrops   = "ViableCrops"
	MetricNarrativeMiss = "NarrativeUnavailable"
	DimMunicipality     = "Municipality"
	DimEnvironment      = "Environment"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Recorder receives a summary of every completed run.
type Recorder interface {
	RecordRun(ctx context.Context, run types.RunCompleted)
}

// CloudWatchRecorder emits run metrics in a single PutMetricData call.
// Failures are logged and swallowed.
type CloudWatchRecorder struct {
	client      CloudWatchClient
	namespace   string
	environment string
	logger      *slog.Logger
}

var _ Recorder = (*CloudWatchRecorder)(nil)

// NewCloudWatchRecorder creates a recorder publishing under namespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace, environment string, logger *slog.Logger) *CloudWatchRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:      client,
		namespace:   namespace,
		environment: environment,
		logger:      logger,
	}
}

// RecordRun implements Recorder.
func (r *CloudWatchRecorder) RecordRun(ctx context.Context, run types.RunCompleted) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(DimEnvironment), Value: aws.String(r.environment)},
		{Name: aws.String(DimMunicipality), Value: aws.String(run.Municipality)},
	}
	narrativeMiss := 0.0
	if run.Viable > 0 && !run.Narrative {
		narrativeMiss = 1
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricRunCompleted),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(MetricRunLatency),
				Value:      aws.Float64(float64(run.Duration)),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: dims[:1],
			},
			{
				MetricName: aws.String(MetricViableCrops),
				Value:      aws.Float64(float64(run.Viable)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(MetricNarrativeMiss),
				Value:      aws.Float64(narrativeMiss),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims[:1],
			},
		},
	}

	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.ErrorContext(ctx, "failed to record run metrics",
			"error", err.Error(),
			"run_id", run.RunID,
		)
	}
}

// Nop discards metrics.
type Nop struct{}

// RecordRun implements Recorder.
func (Nop) RecordRun(context.Context, types.RunCompleted) {}
