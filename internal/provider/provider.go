// Package provider is the client-side data layer: it hydrates a snapshot of
// tasks, AEs and accounts from the backend, keeps it current as mutations
// succeed, and resolves display names to entity ids.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"aetracker/internal/aecolor"
	"aetracker/internal/api"
	"aetracker/internal/model"
	"aetracker/internal/taskview"

	"golang.org/x/sync/errgroup"
)

// Backend is the REST collaborator. *api.Client implements it.
type Backend interface {
	ListAEs(ctx context.Context) ([]model.AE, error)
	CreateAE(ctx context.Context, name string) (model.AE, error)
	DeleteAE(ctx context.Context, id string) error
	ReconcileAEColors(ctx context.Context) (api.ReconcileResponse, error)

	ListAccounts(ctx context.Context) ([]model.Account, error)
	CreateAccount(ctx context.Context, name string) (model.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, req api.CreateTaskRequest) (model.Task, error)
	UpdateTask(ctx context.Context, id string, req api.UpdateTaskRequest) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

var _ Backend = (*api.Client)(nil)

type State int32

const (
	StateUnhydrated State = iota
	StateHydrating
	StateHydrated
)

func (s State) String() string {
	switch s {
	case StateUnhydrated:
		return "UNHYDRATED"
	case StateHydrating:
		return "HYDRATING"
	case StateHydrated:
		return "HYDRATED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type Options struct {
	Logger *slog.Logger
	// Now is the clock used for date filters and summaries.
	Now func() time.Time
}

// TaskInput is a new task addressed by display names.
type TaskInput struct {
	Title       string
	Description string
	AE          string
	Account     string
	Status      model.Status
	DueDate     string
}

// TaskPatch changes only the non-nil fields. An empty Account, Description or
// DueDate clears the field.
type TaskPatch struct {
	Title       *string
	Description *string
	AE          *string
	Account     *string
	Status      *model.Status
	DueDate     *string
}

type Provider struct {
	backend Backend
	store   *Store
	logger  *slog.Logger
	now     func() time.Time

	aes      *resolver[model.AE]
	accounts *resolver[model.Account]

	state       atomic.Int32
	hydrateOnce sync.Once
	hydrated    chan struct{}
}

func New(backend Backend, opts Options) *Provider {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	p := &Provider{
		backend:  backend,
		store:    NewStore(logger),
		logger:   logger,
		now:      now,
		hydrated: make(chan struct{}),
	}
	p.aes = &resolver[model.AE]{
		kind:        "ae",
		nameOf:      func(a model.AE) string { return a.Name },
		idOf:        func(a model.AE) string { return a.ID },
		list:        backend.ListAEs,
		create:      backend.CreateAE,
		onCreated:   p.commitAECreated,
		onRefreshed: p.commitAEList,
	}
	p.accounts = &resolver[model.Account]{
		kind:        "account",
		nameOf:      func(a model.Account) string { return a.Name },
		idOf:        func(a model.Account) string { return a.ID },
		list:        backend.ListAccounts,
		create:      backend.CreateAccount,
		onCreated:   p.commitAccountCreated,
		onRefreshed: p.commitAccountList,
	}
	return p
}

func (p *Provider) State() State { return State(p.state.Load()) }

func (p *Provider) Snapshot() model.Snapshot { return p.store.Snapshot() }

func (p *Provider) Subscribe(fn Listener) (unsubscribe func()) { return p.store.Subscribe(fn) }

// Hydrate loads the initial snapshot. Only the first call fetches; later and
// concurrent calls wait for that fetch. The fetch itself is not cancelled
// when the caller's ctx is, but Hydrate returns ctx.Err() to that caller.
func (p *Provider) Hydrate(ctx context.Context) error {
	p.hydrateOnce.Do(func() {
		p.state.Store(int32(StateHydrating))
		go p.hydrate(context.WithoutCancel(ctx))
	})
	select {
	case <-p.hydrated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provider) hydrate(ctx context.Context) {
	defer close(p.hydrated)

	var (
		aes      []model.AE
		accounts []model.Account
		tasks    []model.Task
		g        errgroup.Group
	)
	g.Go(func() error {
		aes = fetchOrEmpty(ctx, p.logger, "aes", p.backend.ListAEs)
		return nil
	})
	g.Go(func() error {
		accounts = fetchOrEmpty(ctx, p.logger, "accounts", p.backend.ListAccounts)
		return nil
	})
	g.Go(func() error {
		tasks = fetchOrEmpty(ctx, p.logger, "tasks", p.backend.ListTasks)
		return nil
	})
	_ = g.Wait()

	p.aes.load(aes)
	p.accounts.load(accounts)

	aeNames, colors := aeView(aes)
	p.store.update(func(model.Snapshot) model.Snapshot {
		return model.Snapshot{
			Hydrated: true,
			Tasks:    tasks,
			AEs:      aeNames,
			AEColors: colors,
			Accounts: accountNames(accounts),
		}
	})
	p.state.Store(int32(StateHydrated))
	p.logger.Debug("hydrated", "aes", len(aes), "accounts", len(accounts), "tasks", len(tasks))
}

func fetchOrEmpty[T any](ctx context.Context, logger *slog.Logger, what string, fetch func(context.Context) ([]T, error)) []T {
	items, err := fetch(ctx)
	if err != nil {
		logger.Warn("hydration fetch failed", "resource", what, "err", err)
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

func aeView(aes []model.AE) ([]string, map[string]string) {
	names := make([]string, 0, len(aes))
	colors := make(map[string]string, len(aes))
	for _, a := range aes {
		names = append(names, a.Name)
		colors[a.Name] = aecolor.Resolve(a.Name, a.Color)
	}
	return model.SortNames(names), colors
}

func accountNames(accounts []model.Account) []string {
	names := make([]string, 0, len(accounts))
	for _, a := range accounts {
		names = append(names, a.Name)
	}
	return model.SortNames(names)
}

func (p *Provider) commitAECreated(ae model.AE) {
	p.store.update(func(cur model.Snapshot) model.Snapshot {
		// A refetch after a lost create race may already have committed it.
		if model.ContainsName(cur.AEs, ae.Name) {
			return cur
		}
		colors := maps.Clone(cur.AEColors)
		if colors == nil {
			colors = map[string]string{}
		}
		colors[ae.Name] = aecolor.Resolve(ae.Name, ae.Color)
		cur.AEs = model.InsertName(cur.AEs, ae.Name)
		cur.AEColors = colors
		return cur
	})
}

func (p *Provider) commitAEList(aes []model.AE) {
	names, colors := aeView(aes)
	p.store.update(func(cur model.Snapshot) model.Snapshot {
		cur.AEs = names
		cur.AEColors = colors
		return cur
	})
}

func (p *Provider) commitAccountCreated(a model.Account) {
	p.store.update(func(cur model.Snapshot) model.Snapshot {
		cur.Accounts = model.InsertName(cur.Accounts, a.Name)
		return cur
	})
}

func (p *Provider) commitAccountList(accounts []model.Account) {
	names := accountNames(accounts)
	p.store.update(func(cur model.Snapshot) model.Snapshot {
		cur.Accounts = names
		return cur
	})
}

// Tasks returns the snapshot's tasks matching f, in snapshot order.
func (p *Provider) Tasks(ctx context.Context, f model.TaskFilters) ([]model.Task, error) {
	if err := p.Hydrate(ctx); err != nil {
		return nil, err
	}
	return taskview.FilterTasks(p.store.Snapshot().Tasks, f, p.now()), nil
}

// Summaries returns per-AE task counts for the current snapshot.
func (p *Provider) Summaries(ctx context.Context) ([]taskview.AESummary, error) {
	if err := p.Hydrate(ctx); err != nil {
		return nil, err
	}
	snap := p.store.Snapshot()
	return taskview.Summarize(snap.Tasks, snap.AEs, snap.AEColors, p.now()), nil
}

func validateInput(in TaskInput) (TaskInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.AE = strings.TrimSpace(in.AE)
	in.Account = strings.TrimSpace(in.Account)
	in.DueDate = strings.TrimSpace(in.DueDate)
	if in.Title == "" {
		return in, &ValidationError{Field: "title", Message: "title is required"}
	}
	if in.AE == "" {
		return in, &ValidationError{Field: "ae", Message: "ae is required"}
	}
	if in.Status == "" {
		in.Status = model.StatusBacklog
	}
	if !in.Status.Valid() {
		return in, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", in.Status)}
	}
	if in.DueDate != "" && !taskview.ValidDate(in.DueDate) {
		return in, &ValidationError{Field: "dueDate", Message: "due date must be YYYY-MM-DD"}
	}
	return in, nil
}

// CreateTask resolves the AE (and Account, if given) to ids, creating them
// when new, then creates the task and prepends it to the snapshot.
func (p *Provider) CreateTask(ctx context.Context, in TaskInput) (model.Task, error) {
	if err := p.Hydrate(ctx); err != nil {
		return model.Task{}, err
	}
	in, err := validateInput(in)
	if err != nil {
		return model.Task{}, err
	}

	aeID, err := p.aes.ensureID(ctx, in.AE)
	if err != nil {
		return model.Task{}, fmt.Errorf("resolve ae %q: %w", in.AE, err)
	}
	req := api.CreateTaskRequest{Title: in.Title, AEID: aeID, Status: in.Status}
	if !model.IsMissingAccount(in.Account) {
		id, err := p.accounts.ensureID(ctx, in.Account)
		if err != nil {
			return model.Task{}, fmt.Errorf("resolve account %q: %w", in.Account, err)
		}
		req.AccountID = &id
	}
	if strings.TrimSpace(in.Description) != "" {
		req.Description = &in.Description
	}
	if in.DueDate != "" {
		req.DueDate = &in.DueDate
	}

	created, err := p.backend.CreateTask(ctx, req)
	if err != nil {
		attrs := []any{"err", err}
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			attrs = append(attrs, "status", apiErr.Status, "message", apiErr.Message)
		}
		p.logger.Error("create task failed", attrs...)
		return model.Task{}, err
	}

	p.store.update(func(cur model.Snapshot) model.Snapshot {
		tasks := make([]model.Task, 0, len(cur.Tasks)+1)
		tasks = append(tasks, created)
		cur.Tasks = append(tasks, cur.Tasks...)
		return cur
	})
	return created, nil
}

func (p *Provider) buildPatch(ctx context.Context, patch TaskPatch) (api.UpdateTaskRequest, error) {
	var req api.UpdateTaskRequest
	if patch.Title != nil {
		v := strings.TrimSpace(*patch.Title)
		if v == "" {
			return req, &ValidationError{Field: "title", Message: "title is required"}
		}
		req.Title = model.Some(v)
	}
	if patch.Description != nil {
		if strings.TrimSpace(*patch.Description) == "" {
			req.Description = model.Null[string]()
		} else {
			req.Description = model.Some(*patch.Description)
		}
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return req, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", *patch.Status)}
		}
		req.Status = model.Some(*patch.Status)
	}
	if patch.DueDate != nil {
		v := strings.TrimSpace(*patch.DueDate)
		switch {
		case v == "":
			req.DueDate = model.Null[string]()
		case !taskview.ValidDate(v):
			return req, &ValidationError{Field: "dueDate", Message: "due date must be YYYY-MM-DD"}
		default:
			req.DueDate = model.Some(v)
		}
	}
	if patch.AE != nil {
		id, err := p.aes.ensureID(ctx, *patch.AE)
		if err != nil {
			return req, err
		}
		req.AEID = model.Some(id)
	}
	if patch.Account != nil {
		if model.IsMissingAccount(*patch.Account) {
			req.AccountID = model.Null[string]()
		} else {
			id, err := p.accounts.ensureID(ctx, *patch.Account)
			if err != nil {
				return req, err
			}
			req.AccountID = model.Some(id)
		}
	}
	if req.Empty() {
		return req, &ValidationError{Message: "No fields provided"}
	}
	return req, nil
}

// UpdateTask applies patch and replaces the task in place in the snapshot. A
// task the backend no longer has yields (nil, nil).
func (p *Provider) UpdateTask(ctx context.Context, id string, patch TaskPatch) (*model.Task, error) {
	if err := p.Hydrate(ctx); err != nil {
		return nil, err
	}
	req, err := p.buildPatch(ctx, patch)
	if err != nil {
		return nil, err
	}

	updated, err := p.backend.UpdateTask(ctx, id, req)
	if api.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.store.update(func(cur model.Snapshot) model.Snapshot {
		tasks := slices.Clone(cur.Tasks)
		for i := range tasks {
			if tasks[i].ID == id {
				tasks[i] = updated
			}
		}
		cur.Tasks = tasks
		return cur
	})
	return &updated, nil
}

// DeleteTask reports false when the task was already gone.
func (p *Provider) DeleteTask(ctx context.Context, id string) (bool, error) {
	if err := p.Hydrate(ctx); err != nil {
		return false, err
	}
	err := p.backend.DeleteTask(ctx, id)
	if api.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p.store.update(func(cur model.Snapshot) model.Snapshot {
		cur.Tasks = slices.DeleteFunc(slices.Clone(cur.Tasks), func(t model.Task) bool { return t.ID == id })
		return cur
	})
	return true, nil
}

func (p *Provider) AEs(ctx context.Context) ([]string, error) {
	if err := p.Hydrate(ctx); err != nil {
		return nil, err
	}
	return p.store.Snapshot().AEs, nil
}

// CreateAE creates an AE. A duplicate name surfaces as the backend's conflict.
func (p *Provider) CreateAE(ctx context.Context, name string) (model.AE, error) {
	if err := p.Hydrate(ctx); err != nil {
		return model.AE{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.AE{}, &ValidationError{Field: "name", Message: "name is required"}
	}
	created, err := p.backend.CreateAE(ctx, name)
	if err != nil {
		return model.AE{}, err
	}
	p.aes.put(created)
	p.commitAECreated(created)
	return created, nil
}

// DeleteAE deletes the AE with the given display name. It reports false when
// no such AE is known. An AE still referenced by tasks fails with an
// *api.Error carrying the count (see api.InUseCount).
func (p *Provider) DeleteAE(ctx context.Context, name string) (bool, error) {
	if err := p.Hydrate(ctx); err != nil {
		return false, err
	}
	ae, ok := p.aes.lookup(name)
	if !ok {
		return false, nil
	}
	err := p.backend.DeleteAE(ctx, ae.ID)
	if err != nil && !api.IsNotFound(err) {
		return false, err
	}
	p.aes.forget(ae.Name)
	p.store.update(func(cur model.Snapshot) model.Snapshot {
		colors := maps.Clone(cur.AEColors)
		delete(colors, ae.Name)
		cur.AEs = model.RemoveName(cur.AEs, ae.Name)
		cur.AEColors = colors
		return cur
	})
	return err == nil, nil
}

// ReconcileAEColors asks the backend to dedupe AE colors, then reloads the AE
// list so the snapshot carries the new colors.
func (p *Provider) ReconcileAEColors(ctx context.Context) (api.ReconcileResponse, error) {
	if err := p.Hydrate(ctx); err != nil {
		return api.ReconcileResponse{}, err
	}
	res, err := p.backend.ReconcileAEColors(ctx)
	if err != nil {
		return res, err
	}
	if len(res.Unresolved) > 0 {
		p.logger.Warn("AE palette exhausted", "unresolved", len(res.Unresolved))
	}
	aes, err := p.backend.ListAEs(ctx)
	if err != nil {
		return res, fmt.Errorf("reload aes after reconcile: %w", err)
	}
	p.aes.load(aes)
	p.commitAEList(aes)
	return res, nil
}

func (p *Provider) Accounts(ctx context.Context) ([]string, error) {
	if err := p.Hydrate(ctx); err != nil {
		return nil, err
	}
	return p.store.Snapshot().Accounts, nil
}

func (p *Provider) CreateAccount(ctx context.Context, name string) (model.Account, error) {
	if err := p.Hydrate(ctx); err != nil {
		return model.Account{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Account{}, &ValidationError{Field: "name", Message: "name is required"}
	}
	created, err := p.backend.CreateAccount(ctx, name)
	if err != nil {
		return model.Account{}, err
	}
	p.accounts.put(created)
	p.commitAccountCreated(created)
	return created, nil
}

// DeleteAccount mirrors DeleteAE for accounts.
func (p *Provider) DeleteAccount(ctx context.Context, name string) (bool, error) {
	if err := p.Hydrate(ctx); err != nil {
		return false, err
	}
	acct, ok := p.accounts.lookup(name)
	if !ok {
		return false, nil
	}
	err := p.backend.DeleteAccount(ctx, acct.ID)
	if err != nil && !api.IsNotFound(err) {
		return false, err
	}
	p.accounts.forget(acct.Name)
	p.store.update(func(cur model.Snapshot) model.Snapshot {
		cur.Accounts = model.RemoveName(cur.Accounts, acct.Name)
		return cur
	})
	return err == nil, nil
}
