package provider

import (
	"context"
	"net/http"
	"sync"

	"aetracker/internal/api"
	"aetracker/internal/model"
)

// fakeBackend is an in-memory Backend whose responses tests can override.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	aes      []model.AE
	accounts []model.Account
	tasks    []model.Task

	listAEsErr   error
	listTasksErr error
	createAEErr  error
	createAEFn   func(name string) (model.AE, error)
	createTaskFn func(api.CreateTaskRequest) (model.Task, error)

	// block, when set, holds every list call until closed.
	block chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string]int{}}
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) wait() {
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeBackend) ListAEs(ctx context.Context) ([]model.AE, error) {
	f.hit("ListAEs")
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listAEsErr != nil {
		return nil, f.listAEsErr
	}
	return append([]model.AE(nil), f.aes...), nil
}

func (f *fakeBackend) CreateAE(ctx context.Context, name string) (model.AE, error) {
	f.hit("CreateAE")
	if f.createAEFn != nil {
		return f.createAEFn(name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createAEErr != nil {
		return model.AE{}, f.createAEErr
	}
	ae := model.AE{ID: "ae-" + name, Name: name}
	f.aes = append(f.aes, ae)
	return ae, nil
}

func (f *fakeBackend) DeleteAE(ctx context.Context, id string) error {
	f.hit("DeleteAE")
	return &api.Error{Status: http.StatusNotFound, Message: "AE not found"}
}

func (f *fakeBackend) ReconcileAEColors(ctx context.Context) (api.ReconcileResponse, error) {
	f.hit("ReconcileAEColors")
	return api.ReconcileResponse{OK: true}, nil
}

func (f *fakeBackend) ListAccounts(ctx context.Context) ([]model.Account, error) {
	f.hit("ListAccounts")
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Account(nil), f.accounts...), nil
}

func (f *fakeBackend) CreateAccount(ctx context.Context, name string) (model.Account, error) {
	f.hit("CreateAccount")
	a := model.Account{ID: "acct-" + name, Name: name}
	f.mu.Lock()
	f.accounts = append(f.accounts, a)
	f.mu.Unlock()
	return a, nil
}

func (f *fakeBackend) DeleteAccount(ctx context.Context, id string) error {
	f.hit("DeleteAccount")
	return nil
}

func (f *fakeBackend) ListTasks(ctx context.Context) ([]model.Task, error) {
	f.hit("ListTasks")
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listTasksErr != nil {
		return nil, f.listTasksErr
	}
	return append([]model.Task(nil), f.tasks...), nil
}

func (f *fakeBackend) CreateTask(ctx context.Context, req api.CreateTaskRequest) (model.Task, error) {
	f.hit("CreateTask")
	if f.createTaskFn != nil {
		return f.createTaskFn(req)
	}
	return model.Task{ID: "t-new", Title: req.Title, Status: req.Status}, nil
}

func (f *fakeBackend) UpdateTask(ctx context.Context, id string, req api.UpdateTaskRequest) (model.Task, error) {
	f.hit("UpdateTask")
	return model.Task{}, &api.Error{Status: http.StatusNotFound, Message: "Task not found"}
}

func (f *fakeBackend) DeleteTask(ctx context.Context, id string) error {
	f.hit("DeleteTask")
	return &api.Error{Status: http.StatusNotFound, Message: "Task not found"}
}
