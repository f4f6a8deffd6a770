package pipeline

import (
	"context"
	"sync"

	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/jobs"
)

type fakeStore struct {
	InsertFunc  func(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	GetByIDFunc func(ctx context.Context, id string) (*domain.Transaction, error)
	UpdateFunc  func(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	DeleteFunc  func(ctx context.Context, userID, id string) error

	mu    sync.Mutex
	calls int
}

func (f *fakeStore) touch() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeStore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeStore) Insert(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	f.touch()
	if f.InsertFunc == nil {
		out := tx
		out.ID = "11111111-1111-1111-1111-111111111111"
		return &out, nil
	}
	return f.InsertFunc(ctx, tx)
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	f.touch()
	if f.GetByIDFunc == nil {
		return nil, domain.ErrNotFound
	}
	return f.GetByIDFunc(ctx, id)
}

func (f *fakeStore) Update(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	f.touch()
	if f.UpdateFunc == nil {
		out := tx
		return &out, nil
	}
	return f.UpdateFunc(ctx, tx)
}

func (f *fakeStore) Delete(ctx context.Context, userID, id string) error {
	f.touch()
	if f.DeleteFunc == nil {
		return nil
	}
	return f.DeleteFunc(ctx, userID, id)
}

type fakeRefs struct {
	categories map[string]bool
	sources    map[string]bool
	err        error

	mu    sync.Mutex
	calls int
}

func (f *fakeRefs) CategoryExists(ctx context.Context, userID, id string) (bool, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.categories[userID+"/"+id], f.err
}

func (f *fakeRefs) PaymentSourceExists(ctx context.Context, userID, id string) (bool, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.sources[userID+"/"+id], f.err
}

func (f *fakeRefs) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []*jobs.ExportTransactionJob
	err  error
}

func (p *fakePublisher) PublishExport(ctx context.Context, job *jobs.ExportTransactionJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }
