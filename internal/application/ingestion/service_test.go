package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/feedsync/backend/internal/domain/catalog"
	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/domain/shared"
	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/feedsync/backend/internal/infrastructure/cache"
	"github.com/feedsync/backend/internal/infrastructure/config"
	"github.com/feedsync/backend/internal/infrastructure/feed"
	"github.com/feedsync/backend/internal/infrastructure/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockProductWriter is a mock implementation of catalog.ProductWriter
type MockProductWriter struct {
	mock.Mock
}

func (m *MockProductWriter) UpsertBatch(ctx context.Context, products []catalog.Product) (int, error) {
	args := m.Called(ctx, products)
	return args.Int(0), args.Error(1)
}

type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	errs     map[string]error
	calls    []string
	block    chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, &ingestion.FetchError{Kind: ingestion.FetchTimeout, URL: url, Err: ctx.Err()}
		}
	}
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.payloads[url], nil
}

type panicDecoder struct{}

func (panicDecoder) Dispatch(context.Context, supplier.Supplier, []byte) (*feed.DispatchResult, error) {
	panic("decoder exploded")
}

type recordingArchive struct {
	keys []string
	err  error
}

func (a *recordingArchive) Store(_ context.Context, supplierID, runID string, _ supplier.FormatType, _ []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	key := supplierID + "/" + runID
	a.keys = append(a.keys, key)
	return key, nil
}

const (
	scoopURL   = "https://scoop.example/feed.xml"
	csvURL     = "https://csv.example/export.csv"
	brokenURL  = "https://down.example/feed.xml"
	securedURL = "https://secure.example/feed.xml?key={{SECURE_KEY}}"
)

const scoopFeed = `<products>
<product><sku>S-1</sku><name>Switch</name><dealer_price>100</dealer_price><stock>3</stock></product>
<product><sku>S-2</sku><name>Router</name><dealer_price>200</dealer_price><stock>1</stock></product>
<product><sku>S-1</sku><name>Switch copy</name><dealer_price>1</dealer_price><stock>1</stock></product>
</products>`

const csvFeed = "SKU,Name,Category,Price,Stock,Status\nC-1,Mouse,Mice,10,5,Active\nC-2,Old,Mice,1,0,Inactive\n"

func newTestService(t *testing.T, entries []config.SupplierConfig, fetcher FeedFetcher, writer catalog.ProductWriter, opts ...ServiceOption) *Service {
	t.Helper()
	creds := registry.NewResolver(func(name string) (string, bool) { return "", false })
	return NewService(registry.NewStaticRegistry(entries), Context{
		Fetcher:     fetcher,
		Credentials: creds,
		Writer:      writer,
		Logger:      zap.NewNop(),
	}, cache.NewInMemoryRunLock(), opts...)
}

func resultFor(t *testing.T, summary ingestion.RunSummary, id string) ingestion.SupplierResult {
	t.Helper()
	for _, r := range summary.Suppliers {
		if r.SupplierID == id {
			return r
		}
	}
	t.Fatalf("no result for supplier %s", id)
	return ingestion.SupplierResult{}
}

func TestRunAll_UnreachableFeedDoesNotStopNextSupplier(t *testing.T) {
	fetcher := &fakeFetcher{
		payloads: map[string][]byte{scoopURL: []byte(scoopFeed)},
		errs: map[string]error{
			brokenURL: &ingestion.FetchError{Kind: ingestion.FetchNetwork, URL: brokenURL, Err: errors.New("connection refused")},
		},
	}
	writer := new(MockProductWriter)
	writer.On("UpsertBatch", mock.Anything, mock.MatchedBy(func(p []catalog.Product) bool {
		return len(p) == 2
	})).Return(2, nil)

	svc := newTestService(t, []config.SupplierConfig{
		{ID: "down", Name: "Down", URL: brokenURL, Type: "xml-scoop", Enabled: true},
		{ID: "scoop", Name: "Scoop", URL: scoopURL, Type: "scoop", Enabled: true},
	}, fetcher, writer)

	id, err := svc.RunAll(context.Background(), TriggerManual)
	require.NoError(t, err)

	summary, err := svc.Report(id)
	require.NoError(t, err)
	assert.Equal(t, ingestion.RunCompleted, summary.Status)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 1, summary.Failed)

	down := resultFor(t, summary, "down")
	assert.Equal(t, ingestion.SupplierFailed, down.Status)
	assert.Equal(t, "fetch", down.Stage)

	scoop := resultFor(t, summary, "scoop")
	assert.Equal(t, ingestion.SupplierSucceeded, scoop.Status)
	assert.Equal(t, 3, scoop.Parsed)
	assert.Equal(t, 1, scoop.Duplicates)
	assert.Equal(t, 2, scoop.Written)
	assert.Equal(t, supplier.FormatScoop, scoop.DetectedFormat)

	writer.AssertExpectations(t)
}

func TestRunAll_KeepsFirstDuplicate(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string][]byte{scoopURL: []byte(scoopFeed)}}
	var written []catalog.Product
	writer := new(MockProductWriter)
	writer.On("UpsertBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(1).([]catalog.Product) }).
		Return(2, nil)

	svc := newTestService(t, []config.SupplierConfig{
		{ID: "scoop", Name: "Scoop", URL: scoopURL, Type: "scoop", Enabled: true},
	}, fetcher, writer)

	_, err := svc.RunAll(context.Background(), TriggerManual)
	require.NoError(t, err)

	require.Len(t, written, 2)
	assert.Equal(t, "S-1", written[0].SupplierSKU)
	assert.Equal(t, "Switch", written[0].Name)
	assert.Equal(t, "Networking & Connectivity", written[0].Category)
}

func TestRunAll_SkipsDisabledAndScrapeSuppliers(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string][]byte{csvURL: []byte(csvFeed)}}
	writer := new(MockProductWriter)
	writer.On("UpsertBatch", mock.Anything, mock.Anything).Return(1, nil)

	svc := newTestService(t, []config.SupplierConfig{
		{ID: "off", URL: scoopURL, Type: "scoop", Enabled: false},
		{ID: "portal", Type: "scrape", Enabled: true},
		{ID: "csv", Name: "CSV Co", URL: csvURL, Type: "csv", Enabled: true},
	}, fetcher, writer)

	id, err := svc.RunAll(context.Background(), TriggerScheduled)
	require.NoError(t, err)
	summary, err := svc.Report(id)
	require.NoError(t, err)

	assert.Equal(t, TriggerScheduled, summary.Trigger)
	assert.Equal(t, ingestion.SupplierSkipped, resultFor(t, summary, "off").Status)
	assert.Equal(t, ingestion.SupplierSkipped, resultFor(t, summary, "portal").Status)
	assert.Equal(t, ingestion.SupplierSucceeded, resultFor(t, summary, "csv").Status)
	assert.Equal(t, []string{csvURL}, fetcher.calls)
}

func TestRunAll_UnresolvedPlaceholderFailsWithoutFetching(t *testing.T) {
	fetcher := &fakeFetcher{}
	writer := new(MockProductWriter)

	svc := newTestService(t, []config.SupplierConfig{
		{ID: "secure", URL: securedURL, Type: "scoop", Enabled: true},
	}, fetcher, writer)

	id, err := svc.RunAll(context.Background(), TriggerManual)
	require.NoError(t, err)
	summary, _ := svc.Report(id)

	res := resultFor(t, summary, "secure")
	assert.Equal(t, ingestion.SupplierFailed, res.Status)
	assert.Equal(t, "config", res.Stage)
	assert.Contains(t, res.Error, "SECURE_KEY")
	assert.Empty(t, fetcher.calls)
	writer.AssertNotCalled(t, "UpsertBatch", mock.Anything, mock.Anything)
}

func TestRunAll_ResolvedPlaceholderIsFetched(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string][]byte{
		"https://secure.example/feed.xml?key=s3cret": []byte(scoopFeed),
	}}
	writer := new(MockProductWriter)
	writer.On("UpsertBatch", mock.Anything, mock.Anything).Return(2, nil)

	svc := NewService(registry.NewStaticRegistry([]config.SupplierConfig{
		{ID: "secure", URL: securedURL, Type: "scoop", Enabled: true},
	}), Context{
		Fetcher: fetcher,
		Credentials: registry.NewResolver(func(name string) (string, bool) {
			return "s3cret", name == "SECURE_KEY"
		}),
		Writer: writer,
	}, nil)

	id, err := svc.RunAll(context.Background(), TriggerManual)
	require.NoError(t, err)
	summary, _ := svc.Report(id)
	assert.Equal(t, ingestion.SupplierSucceeded, resultFor(t, summary, "secure").Status)
}

func TestRunAll_EmptyFeed(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string][]byte{scoopURL: []byte("<unknown><x/></unknown>")}}
	writer := new(MockProductWriter)

	svc := newTestService(t, []config.SupplierConfig{
		{ID: "scoop", URL: scoopURL, Type: "scoop", Enabled: true},
	}, fetcher, writer)

	id, err := svc.RunAll(context.Background(), TriggerManual)
	require.NoError(t, err)
	summary, _ := svc.Report(id)

	res := resultFor(t, summary, "scoop")
	assert.Equal(t, ingestion.SupplierEmpty, res.Status)
	assert.Equal(t, supplier.FormatUnknown, res.DetectedFormat)
	writer.AssertNotCalled(t, "UpsertBatch", mock.Anything, mock.Anything)
}

func TestRunAll_WriteFailureIsWrapped(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string][]byte{scoopURL: []byte(scoopFeed)}}
	writer := new(MockProductWriter)
	writer.On("UpsertBatch", mock.Anything, mock.Anything).Return(0, errors.New("pool exhausted"))

	svc := newTestService(t, []config.SupplierConfig{
		{ID: "scoop", URL: scoopURL, Type: "scoop", Enabled: true},
	}, fetcher, writer)

	id, err := svc.RunAll(context.Background(), TriggerManual)
	require.NoError(t, err)
	summary, _ := svc.Report(id)

	res := resultFor(t, summary, "scoop")
	assert.Equal(t, ingestion.SupplierFailed, res.Status)
	assert.Equal(t, "write", res.Stage)
	assert.Contains(t, res.Error, "pool exhausted")
}

func TestRunAll_PanicIsConfinedToSupplier(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string][]byte{scoopURL: []byte(scoopFeed), csvURL: []byte(csvFeed)}}
	writer := new(MockProductWriter)

	svc := NewService(registry.NewStaticRegistry([]config.SupplierConfig{
		{ID: "a", URL: scoopURL, Type: "scoop", Enabled: true},
		{ID: "b", URL: csvURL, Type: "csv", Enabled: true},
	}), Context{Fetcher: fetcher, Decoder: panicDecoder{}, Writer: writer}, nil)

	id, err := svc.RunAll(context.Background(), TriggerManual)
	require.NoError(t, err)
	summary, _ := svc.Report(id)

	require.Len(t, summary.Suppliers, 2)
	for _, r := range summary.Suppliers {
		assert.Equal(t, ingestion.SupplierFailed, r.Status)
		assert.Contains(t, r.Error, "decoder exploded")
	}
	assert.Equal(t, ingestion.RunCompleted, summary.Status)
}

func TestRunAll_ArchivesPayloadAndToleratesArchiveErrors(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string][]byte{scoopURL: []byte(scoopFeed)}}
	writer := new(MockProductWriter)
	writer.On("UpsertBatch", mock.Anything, mock.Anything).Return(2, nil)

	archive := &recordingArchive{}
	svc := NewService(registry.NewStaticRegistry([]config.SupplierConfig{
		{ID: "scoop", URL: scoopURL, Type: "scoop", Enabled: true},
	}), Context{Fetcher: fetcher, Writer: writer, Archive: archive}, nil)

	id, err := svc.RunAll(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, []string{"scoop/" + id}, archive.keys)

	archive.err = errors.New("bucket gone")
	id, err = svc.RunAll(context.Background(), TriggerManual)
	require.NoError(t, err)
	summary, _ := svc.Report(id)
	assert.Equal(t, ingestion.SupplierSucceeded, resultFor(t, summary, "scoop").Status)
}

func TestRunSupplier_UnknownSupplierFailsRun(t *testing.T) {
	svc := newTestService(t, nil, &fakeFetcher{}, new(MockProductWriter))

	id, err := svc.RunSupplier(context.Background(), TriggerCLI, "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")

	summary, err := svc.Report(id)
	require.NoError(t, err)
	assert.Equal(t, ingestion.RunFailed, summary.Status)
}

func TestRunSupplier_ProcessesOnlyThatSupplier(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string][]byte{csvURL: []byte(csvFeed)}}
	writer := new(MockProductWriter)
	writer.On("UpsertBatch", mock.Anything, mock.Anything).Return(1, nil)

	svc := newTestService(t, []config.SupplierConfig{
		{ID: "scoop", URL: scoopURL, Type: "scoop", Enabled: true},
		{ID: "csv", URL: csvURL, Type: "csv", Enabled: true},
	}, fetcher, writer)

	id, err := svc.RunSupplier(context.Background(), TriggerCLI, "csv")
	require.NoError(t, err)
	summary, _ := svc.Report(id)
	require.Len(t, summary.Suppliers, 1)
	assert.Equal(t, "csv", summary.Suppliers[0].SupplierID)
}

func TestStartRun_RejectsConcurrentRun(t *testing.T) {
	fetcher := &fakeFetcher{
		payloads: map[string][]byte{csvURL: []byte(csvFeed)},
		block:    make(chan struct{}),
	}
	writer := new(MockProductWriter)
	writer.On("UpsertBatch", mock.Anything, mock.Anything).Return(1, nil)

	svc := newTestService(t, []config.SupplierConfig{
		{ID: "csv", URL: csvURL, Type: "csv", Enabled: true},
	}, fetcher, writer)

	id, err := svc.StartRun(context.Background(), TriggerManual, "")
	require.NoError(t, err)

	_, err = svc.StartRun(context.Background(), TriggerManual, "")
	assert.ErrorIs(t, err, shared.ErrAlreadyRunning)
	_, err = svc.RunAll(context.Background(), TriggerScheduled)
	assert.ErrorIs(t, err, shared.ErrAlreadyRunning)

	summary, err := svc.Report(id)
	require.NoError(t, err)
	assert.Equal(t, ingestion.RunRunning, summary.Status)

	close(fetcher.block)
	assert.Eventually(t, func() bool {
		s, _ := svc.Report(id)
		return s.Status == ingestion.RunCompleted
	}, 2*time.Second, 10*time.Millisecond)

	// lock released after completion
	assert.Eventually(t, func() bool {
		_, err := svc.RunAll(context.Background(), TriggerManual)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartRun_SurvivesCallerCancellation(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string][]byte{csvURL: []byte(csvFeed)}}
	writer := new(MockProductWriter)
	writer.On("UpsertBatch", mock.Anything, mock.Anything).Return(1, nil)

	svc := newTestService(t, []config.SupplierConfig{
		{ID: "csv", URL: csvURL, Type: "csv", Enabled: true},
	}, fetcher, writer)

	ctx, cancel := context.WithCancel(context.Background())
	id, err := svc.StartRun(ctx, TriggerManual, "")
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool {
		s, _ := svc.Report(id)
		return s.Status == ingestion.RunCompleted && s.Written == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClose_CancelsBackgroundRuns(t *testing.T) {
	fetcher := &fakeFetcher{block: make(chan struct{})}

	svc := newTestService(t, []config.SupplierConfig{
		{ID: "a", URL: scoopURL, Type: "scoop", Enabled: true},
		{ID: "b", URL: csvURL, Type: "csv", Enabled: true},
	}, fetcher, new(MockProductWriter))

	id, err := svc.StartRun(context.Background(), TriggerManual, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return len(fetcher.calls) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Close(ctx))

	summary, _ := svc.Report(id)
	assert.Equal(t, ingestion.RunCompleted, summary.Status)
	assert.Equal(t, ingestion.SupplierFailed, resultFor(t, summary, "a").Status)
	b := resultFor(t, summary, "b")
	assert.Equal(t, ingestion.SupplierSkipped, b.Status)
	assert.Equal(t, "run cancelled", b.Error)
}

func TestReport_NotFound(t *testing.T) {
	svc := newTestService(t, nil, &fakeFetcher{}, new(MockProductWriter))
	_, err := svc.Report("missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
