package cloudwatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/entity"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/valueobject"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

const (
	// CloudWatch limits
	maxMetricsPerRequest = 1000
	maxRetries           = 3
	initialBackoff       = 100 * time.Millisecond

	dimensionDeployment = "DeploymentId"
)

// metricsAPI is the subset of the CloudWatch client used by the publisher.
type metricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsPublisherConfig holds configuration for mirroring flushed counters.
type MetricsPublisherConfig struct {
	Namespace         string            // CloudWatch namespace (e.g., "TrafficIngest/Deployments")
	Region            string            // AWS region (e.g., "us-east-1")
	Endpoint          string            // Optional endpoint override (for LocalStack)
	AccessKeyID       string            // AWS access key
	SecretAccessKey   string            // AWS secret key
	DefaultDimensions map[string]string // Default dimensions added to all metrics
	BufferSize        int               // Buffer size before auto-flush
	StorageResolution int32             // Storage resolution in seconds (1 or 60)
}

// MetricsPublisher mirrors flushed per-deployment counters to CloudWatch.
// Implements port.SnapshotPublisher.
type MetricsPublisher struct {
	client            metricsAPI
	namespace         string
	defaultDimensions []types.Dimension
	storageResolution int32
	logger            *logger.Logger

	buffer     []types.MetricDatum
	bufferSize int
	mu         sync.Mutex
}

// NewMetricsPublisher creates a new CloudWatch metrics publisher.
func NewMetricsPublisher(ctx context.Context, cfg MetricsPublisherConfig, log *logger.Logger) (*MetricsPublisher, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	return newMetricsPublisher(cloudwatch.NewFromConfig(awsCfg), cfg, log), nil
}

func newMetricsPublisher(client metricsAPI, cfg MetricsPublisherConfig, log *logger.Logger) *MetricsPublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = maxMetricsPerRequest
	}
	if cfg.StorageResolution != 1 && cfg.StorageResolution != 60 {
		cfg.StorageResolution = 60 // Default to standard resolution
	}

	// sorted so datums are deterministic
	keys := make([]string, 0, len(cfg.DefaultDimensions))
	for k := range cfg.DefaultDimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dims := make([]types.Dimension, 0, len(keys))
	for _, k := range keys {
		dims = append(dims, types.Dimension{Name: aws.String(k), Value: aws.String(cfg.DefaultDimensions[k])})
	}

	return &MetricsPublisher{
		client:            client,
		namespace:         cfg.Namespace,
		defaultDimensions: dims,
		storageResolution: cfg.StorageResolution,
		logger:            log,
		buffer:            make([]types.MetricDatum, 0, cfg.BufferSize),
		bufferSize:        cfg.BufferSize,
	}
}

// PublishSnapshot converts every non-zero counter of the snapshot into a datum
// and publishes the whole snapshot.
func (p *MetricsPublisher) PublishSnapshot(ctx context.Context, at time.Time, snapshot entity.MetricsSnapshot) error {
	if snapshot.IsEmpty() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range snapshot.DeploymentIDs() {
		m, _ := snapshot.Get(id)
		for _, c := range m.NonZeroCounters() {
			p.buffer = append(p.buffer, p.convertToDatum(at, id, c))

			if len(p.buffer) >= p.bufferSize {
				if err := p.flushBufferUnsafe(ctx); err != nil {
					return fmt.Errorf("failed to flush buffer: %w", err)
				}
			}
		}
	}

	return p.flushBufferUnsafe(ctx)
}

// Flush forces immediate publication of all buffered metrics.
func (p *MetricsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBufferUnsafe(ctx)
}

// flushBufferUnsafe flushes the buffer (caller must hold lock).
// A failed chunk is dropped along with the rest of the buffer.
func (p *MetricsPublisher) flushBufferUnsafe(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}
	defer func() { p.buffer = p.buffer[:0] }()

	for i := 0; i < len(p.buffer); i += maxMetricsPerRequest {
		end := i + maxMetricsPerRequest
		if end > len(p.buffer) {
			end = len(p.buffer)
		}

		if err := p.publishBatchWithRetry(ctx, p.buffer[i:end]); err != nil {
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	p.logger.Debug("Metrics mirrored to CloudWatch", "datums", len(p.buffer))
	return nil
}

// publishBatchWithRetry publishes a batch of metrics with exponential backoff retry.
func (p *MetricsPublisher) publishBatchWithRetry(ctx context.Context, data []types.MetricDatum) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: data,
		})
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// convertToDatum converts one deployment counter to a CloudWatch MetricDatum.
func (p *MetricsPublisher) convertToDatum(at time.Time, deploymentID string, c entity.Counter) types.MetricDatum {
	dimensions := make([]types.Dimension, 0, len(p.defaultDimensions)+1)
	dimensions = append(dimensions, p.defaultDimensions...)
	dimensions = append(dimensions, types.Dimension{
		Name:  aws.String(dimensionDeployment),
		Value: aws.String(deploymentID),
	})

	datum := types.MetricDatum{
		MetricName: aws.String(c.Name.String()),
		Value:      aws.Float64(float64(c.Value)),
		Unit:       mapUnit(c.Name),
		Timestamp:  aws.Time(at),
		Dimensions: dimensions,
	}

	if p.storageResolution > 0 {
		datum.StorageResolution = aws.Int32(p.storageResolution)
	}

	return datum
}

// mapUnit maps counter names to CloudWatch StandardUnit.
func mapUnit(name valueobject.CounterName) types.StandardUnit {
	switch {
	case strings.HasPrefix(name.String(), "bytes_"):
		return types.StandardUnitBytes
	case strings.HasPrefix(name.String(), "num_requests_"):
		return types.StandardUnitCount
	default:
		return types.StandardUnitNone
	}
}

// buildAWSConfig creates an AWS config with credentials.
func buildAWSConfig(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string) (aws.Config, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	// Add static credentials if provided
	if accessKeyID != "" && secretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, err
	}

	// Override endpoint if specified (for LocalStack testing)
	if endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}

	return cfg, nil
}
