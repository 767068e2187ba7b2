package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type scriptedGateway struct {
	id        string
	test      bool
	purchase  func(ctx context.Context, req PaymentRequest) (ChainResult, error)
	authorize func(ctx context.Context, req PaymentRequest) (ChainResult, error)
}

func (g *scriptedGateway) ID() string { return g.id }

func (g *scriptedGateway) TestMode() bool { return g.test }

func (g *scriptedGateway) Scrub(transcript string) string {
	return transcript
}

func (g *scriptedGateway) Purchase(ctx context.Context, req PaymentRequest) (ChainResult, error) {
	if g.purchase == nil {
		return SingleStep(Outcome{Success: true, Message: "approved", Authorization: "auth_1", Raw: map[string]any{}}), nil
	}
	return g.purchase(ctx, req)
}

// authorizeOnlyGateway implements a single capability.
type authorizeOnlyGateway struct {
	scriptedGateway
}

func (g *authorizeOnlyGateway) Authorize(ctx context.Context, req PaymentRequest) (ChainResult, error) {
	return g.authorize(ctx, req)
}

type memoryTransactionStore struct {
	mu      sync.Mutex
	next    int
	records map[string]Transaction
}

func newMemoryTransactionStore() *memoryTransactionStore {
	return &memoryTransactionStore{records: map[string]Transaction{}}
}

func (s *memoryTransactionStore) Record(_ context.Context, txn Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	txn.ID = fmt.Sprintf("txn_%d", s.next)
	txn.CreatedAt = time.Now().UTC()
	s.records[txn.ID] = txn
	return txn, nil
}

func (s *memoryTransactionStore) Get(_ context.Context, id string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.records[id]
	if !ok {
		return Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	return txn, nil
}

func (s *memoryTransactionStore) List(_ context.Context, filter TransactionFilter) (TransactionPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Transaction, 0, len(s.records))
	for _, txn := range s.records {
		if filter.ProviderID != "" && txn.ProviderID != filter.ProviderID {
			continue
		}
		items = append(items, txn)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return TransactionPage{Items: items, Total: len(items)}, nil
}

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) hasCounter(name string, status string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, counter := range m.counters {
		if counter.name == name && counter.tags["status"] == status {
			return true
		}
	}
	return false
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]capturedLog, len(*l.records))
	copy(out, *l.records)
	return out
}

func (l *captureLogger) has(level string, msg string) bool {
	for _, record := range l.snapshot() {
		if record.level == level && record.msg == msg {
			return true
		}
	}
	return false
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

type scriptedDelivery struct {
	msg      *JobExecutionMessage
	acked    bool
	nacked   bool
	nackOpts JobNackOptions
}

func (d *scriptedDelivery) Message() *JobExecutionMessage { return d.msg }

func (d *scriptedDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *scriptedDelivery) Nack(_ context.Context, opts JobNackOptions) error {
	d.nacked = true
	d.nackOpts = opts
	return nil
}

type capturingEnqueuer struct {
	last *JobExecutionMessage
}

func (e *capturingEnqueuer) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	e.last = msg
	return nil
}

func outcomeStep(name string, outcome Outcome, calls *[]string) Step {
	return NewStep(name, func(_ context.Context, previous string) (Outcome, error) {
		*calls = append(*calls, name+"<"+previous)
		return outcome, nil
	})
}

func errorStep(name string, err error, calls *[]string) Step {
	return NewStep(name, func(_ context.Context, previous string) (Outcome, error) {
		*calls = append(*calls, name+"<"+previous)
		return Outcome{}, err
	})
}

func testCard() PaymentSource {
	return CardSource(CreditCard{Number: "4000100011112224", Month: 9, Year: 2030, VerificationValue: "123", FirstName: "Longbob", LastName: "Longsen"})
}
