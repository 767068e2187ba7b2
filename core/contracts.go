package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Gateway is the minimum every provider implements. Payment operations are
// exposed through the capability interfaces below.
type Gateway interface {
	ID() string
	TestMode() bool
	Scrub(transcript string) string
}

type Purchaser interface {
	Purchase(ctx context.Context, req PaymentRequest) (ChainResult, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, req PaymentRequest) (ChainResult, error)
}

type Capturer interface {
	Capture(ctx context.Context, req PaymentRequest) (ChainResult, error)
}

type Voider interface {
	Void(ctx context.Context, req PaymentRequest) (ChainResult, error)
}

type Refunder interface {
	Refund(ctx context.Context, req PaymentRequest) (ChainResult, error)
}

type Verifier interface {
	Verify(ctx context.Context, req PaymentRequest) (ChainResult, error)
}

type Storer interface {
	Store(ctx context.Context, req PaymentRequest) (ChainResult, error)
}

type Registry interface {
	Register(gateway Gateway) error
	Get(providerID string) (Gateway, bool)
	List() []Gateway
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	Idempotency          string
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// RequestSigner mutates an outbound request with provider credentials.
type RequestSigner interface {
	Sign(ctx context.Context, req *TransportRequest) error
}

type TransactionSink interface {
	Record(ctx context.Context, txn Transaction) (Transaction, error)
}

type TransactionReader interface {
	Get(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context, filter TransactionFilter) (TransactionPage, error)
}

type TransactionStore interface {
	TransactionSink
	TransactionReader
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (TransactionStore, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
