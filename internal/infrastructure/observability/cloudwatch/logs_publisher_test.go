package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/port"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

type fakeLogsClient struct {
	puts        []*cloudwatchlogs.PutLogEventsInput
	putErrs     []error
	groupErr    error
	streamErr   error
	groupCalls  int
	streamCalls int
}

func (f *fakeLogsClient) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.puts = append(f.puts, in)
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &cloudwatchlogs.PutLogEventsOutput{NextSequenceToken: aws.String(fmt.Sprintf("token-%d", len(f.puts)))}, nil
}

func (f *fakeLogsClient) CreateLogGroup(context.Context, *cloudwatchlogs.CreateLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.groupCalls++
	return &cloudwatchlogs.CreateLogGroupOutput{}, f.groupErr
}

func (f *fakeLogsClient) CreateLogStream(context.Context, *cloudwatchlogs.CreateLogStreamInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	f.streamCalls++
	return &cloudwatchlogs.CreateLogStreamOutput{}, f.streamErr
}

func newTestLogsPublisher(client *fakeLogsClient, bufferSize int) *LogsPublisher {
	return newLogsPublisher(client, LogsPublisherConfig{
		LogGroupName:  "/traffic/test",
		LogStreamName: "ingest",
		BufferSize:    bufferSize,
	}, logger.New("error"))
}

func record(id string) port.EmitRecord {
	return port.EmitRecord{Message: map[string]interface{}{"deploymentid": id}}
}

func TestLogsPublisherFlushesInChronologicalOrder(t *testing.T) {
	client := &fakeLogsClient{}
	p := newTestLogsPublisher(client, 10)
	ctx := context.Background()

	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	_ = p.Emit(ctx, "minio", now.Add(5*time.Second), record("third"))
	_ = p.Emit(ctx, "minio", now, record("first"))
	_ = p.Emit(ctx, "minio", now.Add(2*time.Second), record("second"))

	if len(client.puts) != 0 {
		t.Fatalf("events should stay buffered until flush")
	}
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(client.puts) != 1 {
		t.Fatalf("expected one PutLogEvents call, got %d", len(client.puts))
	}

	events := client.puts[0].LogEvents
	want := []string{"first", "second", "third"}
	for i, e := range events {
		var env struct {
			Tag    string `json:"tag"`
			Record struct {
				Message map[string]interface{} `json:"message"`
			} `json:"record"`
		}
		if err := json.Unmarshal([]byte(*e.Message), &env); err != nil {
			t.Fatalf("event %d is not JSON: %v", i, err)
		}
		if env.Tag != "minio" || env.Record.Message["deploymentid"] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, *e.Message, want[i])
		}
		if i > 0 && *events[i].Timestamp < *events[i-1].Timestamp {
			t.Fatalf("events not in chronological order")
		}
	}

	if aws.ToString(client.puts[0].LogGroupName) != "/traffic/test" {
		t.Fatalf("unexpected log group %v", client.puts[0].LogGroupName)
	}
}

func TestLogsPublisherAutoFlushWhenBufferFull(t *testing.T) {
	client := &fakeLogsClient{}
	p := newTestLogsPublisher(client, 2)
	ctx := context.Background()

	_ = p.Emit(ctx, "minio", time.Now(), record("a"))
	if len(client.puts) != 0 {
		t.Fatalf("unexpected early flush")
	}
	_ = p.Emit(ctx, "minio", time.Now(), record("b"))
	if len(client.puts) != 1 || len(client.puts[0].LogEvents) != 2 {
		t.Fatalf("expected auto-flush of 2 events, got %d calls", len(client.puts))
	}

	// sequence token from the previous response is reused
	_ = p.Emit(ctx, "minio", time.Now(), record("c"))
	_ = p.Emit(ctx, "minio", time.Now(), record("d"))
	if aws.ToString(client.puts[1].SequenceToken) != "token-1" {
		t.Fatalf("expected sequence token to be carried over, got %v", client.puts[1].SequenceToken)
	}
}

func TestLogsPublisherRetriesInvalidSequenceToken(t *testing.T) {
	client := &fakeLogsClient{putErrs: []error{
		&types.InvalidSequenceTokenException{ExpectedSequenceToken: aws.String("expected")},
	}}
	p := newTestLogsPublisher(client, 10)
	ctx := context.Background()

	_ = p.Emit(ctx, "minio", time.Now(), record("a"))
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(client.puts) != 2 || aws.ToString(client.puts[1].SequenceToken) != "expected" {
		t.Fatalf("expected retry with the expected token")
	}
}

func TestLogsPublisherKeepsBufferOnFailure(t *testing.T) {
	failure := errors.New("throttled")
	client := &fakeLogsClient{putErrs: []error{failure, failure, failure}}
	p := newTestLogsPublisher(client, 10)
	ctx := context.Background()

	_ = p.Emit(ctx, "minio", time.Now(), record("a"))
	if err := p.Flush(ctx); !errors.Is(err, failure) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
	if len(p.buffer) != 1 {
		t.Fatalf("failed events should stay buffered, got %d", len(p.buffer))
	}

	if err := p.Flush(ctx); err != nil {
		t.Fatalf("second Flush() error = %v", err)
	}
	if len(p.buffer) != 0 {
		t.Fatalf("buffer should be empty after successful flush")
	}
}

func TestLogsPublisherTruncatesLargeEvents(t *testing.T) {
	client := &fakeLogsClient{}
	p := newTestLogsPublisher(client, 10)
	ctx := context.Background()

	big := port.EmitRecord{Message: map[string]interface{}{"blob": strings.Repeat("x", maxLogEventSize+1000)}}
	_ = p.Emit(ctx, "minio", time.Now(), big)
	_ = p.Flush(ctx)

	msg := *client.puts[0].LogEvents[0].Message
	if len(msg) != maxLogEventSize || !strings.HasSuffix(msg, "...") {
		t.Fatalf("expected truncation to %d bytes with marker, got %d", maxLogEventSize, len(msg))
	}
}

func TestEnsureLogGroupAndStreamIgnoresExisting(t *testing.T) {
	client := &fakeLogsClient{
		groupErr:  &types.ResourceAlreadyExistsException{},
		streamErr: &types.ResourceAlreadyExistsException{},
	}
	p := newTestLogsPublisher(client, 10)

	if err := p.ensureLogGroupAndStream(context.Background()); err != nil {
		t.Fatalf("existing resources should be accepted: %v", err)
	}

	client.streamErr = errors.New("access denied")
	if err := p.ensureLogGroupAndStream(context.Background()); err == nil {
		t.Fatalf("expected error for other failures")
	}
}

func TestNewLogsPublisherValidation(t *testing.T) {
	tests := []struct {
		name   string
		config LogsPublisherConfig
	}{
		{"missing log group", LogsPublisherConfig{LogStreamName: "s", Region: "us-east-1"}},
		{"missing log stream", LogsPublisherConfig{LogGroupName: "/g", Region: "us-east-1"}},
		{"missing region", LogsPublisherConfig{LogGroupName: "/g", LogStreamName: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLogsPublisher(context.Background(), tt.config, logger.New("error")); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLogsPublisherCloseFlushes(t *testing.T) {
	client := &fakeLogsClient{}
	p := newTestLogsPublisher(client, 10)
	p.wg.Add(1)
	go p.flushLoop()

	_ = p.Emit(context.Background(), "minio", time.Now(), record("a"))
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(client.puts) != 1 {
		t.Fatalf("Close should flush remaining events")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
