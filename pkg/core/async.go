package core

import (
	"context"
	"sync"

	"github.com/collectiq/agentmem-go/pkg/retrieval"
	"github.com/collectiq/agentmem-go/pkg/types"
)

// AsyncClient provides asynchronous agentmem operations.
//
// It wraps the synchronous Client and executes operations in separate
// goroutines, returning channels that receive the results. The client
// tracks every goroutine and provides Wait() to drain them before exit.
//
// Example:
//
//	asyncClient, _ := core.NewAsyncClient(cfg)
//	defer asyncClient.Close()
//
//	retrieveChan := asyncClient.RetrieveContextAsync(ctx, "how to open?")
//	queryChan := asyncClient.QueryAsync(ctx, "payment plans")
//
//	retrieved := <-retrieveChan
//	queried := <-queryChan
type AsyncClient struct {
	*Client
	wg sync.WaitGroup
}

// NewAsyncClient creates a new asynchronous agentmem client.
func NewAsyncClient(cfg *Config, opts ...ClientOption) (*AsyncClient, error) {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &AsyncClient{Client: client}, nil
}

// AsyncQueryResult contains the result of an asynchronous Query.
type AsyncQueryResult struct {
	// Result is the merged two-tier lookup (nil if an error occurred).
	Result *QueryResult

	// Error is the error returned by the operation (nil on success).
	Error error
}

// QueryAsync runs Query in a separate goroutine and returns the result via
// a channel.
func (ac *AsyncClient) QueryAsync(ctx context.Context, query string, opts ...QueryOption) <-chan *AsyncQueryResult {
	resultChan := make(chan *AsyncQueryResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		result, err := ac.Query(ctx, query, opts...)
		resultChan <- &AsyncQueryResult{
			Result: result,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// AsyncRetrieveResult contains the result of an asynchronous
// RetrieveContext.
type AsyncRetrieveResult struct {
	// Context is the assembled context (nil if an error occurred).
	Context *retrieval.AssembledContext

	// Error is the error returned by the operation (nil on success).
	Error error
}

// RetrieveContextAsync runs the retrieval pipeline in a separate goroutine
// and returns the result via a channel.
func (ac *AsyncClient) RetrieveContextAsync(ctx context.Context, query string, opts ...RetrieveOption) <-chan *AsyncRetrieveResult {
	resultChan := make(chan *AsyncRetrieveResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		assembled, err := ac.RetrieveContext(ctx, query, opts...)
		resultChan <- &AsyncRetrieveResult{
			Context: assembled,
			Error:   err,
		}
		close(resultChan)
	}()

	return resultChan
}

// AsyncConsolidateResult contains the result of an asynchronous
// ConsolidateSession.
type AsyncConsolidateResult struct {
	// Memory is the archived episodic record (nil if an error occurred).
	Memory *types.EpisodicMemory

	// Error is the error returned by the operation (nil on success).
	Error error
}

// ConsolidateSessionAsync drains one session in a separate goroutine and
// returns the result via a channel.
func (ac *AsyncClient) ConsolidateSessionAsync(ctx context.Context, id string, outcome *types.Outcome) <-chan *AsyncConsolidateResult {
	resultChan := make(chan *AsyncConsolidateResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		memory, err := ac.ConsolidateSession(ctx, id, outcome)
		resultChan <- &AsyncConsolidateResult{
			Memory: memory,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// Wait blocks until all asynchronous operations have finished.
func (ac *AsyncClient) Wait() {
	ac.wg.Wait()
}

// Close waits for all asynchronous operations to complete, then closes the
// underlying client.
func (ac *AsyncClient) Close() error {
	ac.Wait()
	return ac.Client.Close()
}
