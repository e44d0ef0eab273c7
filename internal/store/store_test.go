package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"aetracker/internal/aecolor"
	"aetracker/internal/model"
)

func openTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "aetracker.db"), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, &now
}

func strp(s string) *string { return &s }

func TestOpen_InstanceIDIsStable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id1, err := s.InstanceID(ctx)
	if err != nil || id1 == "" {
		t.Fatalf("InstanceID: %q %v", id1, err)
	}
	_ = s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	id2, _ := s.InstanceID(ctx)
	if id1 != id2 {
		t.Fatalf("instance id changed: %s -> %s", id1, id2)
	}
}

func TestCreateAE_DuplicateNameIsCaseInsensitive(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateAE(ctx, "Ava", nil); err != nil {
		t.Fatalf("CreateAE: %v", err)
	}
	_, err := s.CreateAE(ctx, "  ava ", nil)
	var conflict ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if _, err := s.CreateAE(ctx, " ", nil); !errors.As(err, new(ValidationError)) {
		t.Fatalf("expected ValidationError for blank name, got %v", err)
	}
}

func TestListAEs_SortedByName(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	for _, n := range []string{"zed", "Bob", "alice"} {
		if _, err := s.CreateAE(ctx, n, nil); err != nil {
			t.Fatalf("CreateAE(%s): %v", n, err)
		}
	}
	aes, err := s.ListAEs(ctx)
	if err != nil {
		t.Fatalf("ListAEs: %v", err)
	}
	var names []string
	for _, a := range aes {
		names = append(names, a.Name)
		if a.CreatedAt == nil {
			t.Fatalf("createdAt missing for %s", a.Name)
		}
	}
	want := []string{"alice", "Bob", "zed"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

func TestCreateTask_ResolvesNamesAndRoundTrips(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, NewTask{Title: "T", AE: "Ava", Status: model.StatusBacklog})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.AE != "Ava" || task.Account != "" || task.CompletedAt != nil {
		t.Fatalf("unexpected task: %+v", task)
	}

	// Same AE by different case does not create a second row.
	if _, err := s.CreateTask(ctx, NewTask{Title: "U", AE: "AVA", Account: "Acme"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	aes, _ := s.ListAEs(ctx)
	if len(aes) != 1 {
		t.Fatalf("expected 1 AE, got %+v", aes)
	}
	accts, _ := s.ListAccounts(ctx)
	if len(accts) != 1 || accts[0].Name != "Acme" {
		t.Fatalf("unexpected accounts: %+v", accts)
	}

	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	got, err := s.GetTask(ctx, task.ID)
	if err != nil || got.Title != "T" || got.Status != model.StatusBacklog {
		t.Fatalf("GetTask: %+v %v", got, err)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		in    NewTask
		field string
	}{
		{"no title", NewTask{AE: "Ava"}, "title"},
		{"no ae", NewTask{Title: "T"}, "ae"},
		{"bad status", NewTask{Title: "T", AE: "Ava", Status: "SOON"}, "status"},
		{"bad due", NewTask{Title: "T", AE: "Ava", DueDate: strp("3/14")}, "due_date"},
		{"unknown ae id", NewTask{Title: "T", AEID: "00000000-0000-0000-0000-000000000000"}, "ae_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateTask(ctx, tc.in)
			var ve ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected validation on %s, got %v", tc.field, err)
			}
		})
	}
}

func TestCreateTask_DoneStampsCompletedAt(t *testing.T) {
	s, now := openTestStore(t)
	task, err := s.CreateTask(context.Background(), NewTask{Title: "T", AE: "Ava", Status: model.StatusDone})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.CompletedAt == nil || !task.CompletedAt.Equal(*now) {
		t.Fatalf("completedAt = %v, want %v", task.CompletedAt, now)
	}
}

func TestUpdateTask_StatusTransitions(t *testing.T) {
	s, now := openTestStore(t)
	ctx := context.Background()
	task, err := s.CreateTask(ctx, NewTask{Title: "T", AE: "Ava", Account: "Acme", DueDate: strp("2024-03-14")})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	done, err := s.UpdateTask(ctx, task.ID, TaskUpdate{Status: model.Some(model.StatusDone)})
	if err != nil {
		t.Fatalf("UpdateTask DONE: %v", err)
	}
	if done.CompletedAt == nil || !done.CompletedAt.Equal(*now) {
		t.Fatalf("completedAt not stamped: %+v", done)
	}
	if done.DueDate != "2024-03-14" || done.Account != "Acme" {
		t.Fatalf("unrelated fields changed: %+v", done)
	}

	*now = now.Add(time.Hour)
	back, err := s.UpdateTask(ctx, task.ID, TaskUpdate{
		Status:    model.Some(model.StatusBacklog),
		AccountID: model.Null[string](),
		DueDate:   model.Null[string](),
	})
	if err != nil {
		t.Fatalf("UpdateTask BACKLOG: %v", err)
	}
	if back.CompletedAt != nil || back.Account != "" || back.DueDate != "" {
		t.Fatalf("expected cleared fields: %+v", back)
	}
	if back.UpdatedAt == nil || !back.UpdatedAt.Equal(*now) {
		t.Fatalf("updatedAt = %v", back.UpdatedAt)
	}
}

func TestUpdateTask_Errors(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateTask(ctx, "00000000-0000-0000-0000-000000000000", TaskUpdate{Title: model.Some("x")})
	if !errors.As(err, new(NotFoundError)) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	task, _ := s.CreateTask(ctx, NewTask{Title: "T", AE: "Ava"})
	_, err = s.UpdateTask(ctx, task.ID, TaskUpdate{})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Message != "No fields provided" {
		t.Fatalf("expected empty-patch validation, got %v", err)
	}
}

func TestDeleteAE_InUseCarriesCount(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	ae, _ := s.CreateAE(ctx, "Ava", nil)
	for _, title := range []string{"a", "b"} {
		if _, err := s.CreateTask(ctx, NewTask{Title: title, AEID: ae.ID}); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}
	err := s.DeleteAE(ctx, ae.ID)
	var inUse InUseError
	if !errors.As(err, &inUse) || inUse.Count != 2 {
		t.Fatalf("expected InUseError{Count:2}, got %v", err)
	}

	free, _ := s.CreateAE(ctx, "Bob", nil)
	if err := s.DeleteAE(ctx, free.ID); err != nil {
		t.Fatalf("DeleteAE: %v", err)
	}
	if err := s.DeleteAE(ctx, free.ID); !errors.As(err, new(NotFoundError)) {
		t.Fatalf("expected NotFoundError on second delete, got %v", err)
	}
	aes, _ := s.ListAEs(ctx)
	if len(aes) != 1 || aes[0].Name != "Ava" {
		t.Fatalf("unexpected AEs after delete: %+v", aes)
	}
}

func TestDeleteTask(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	task, _ := s.CreateTask(ctx, NewTask{Title: "T", AE: "Ava"})
	if err := s.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if err := s.DeleteTask(ctx, task.ID); !errors.As(err, new(NotFoundError)) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestReconcileAEColors_PersistsChanges(t *testing.T) {
	s, now := openTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateAE(ctx, "A", strp(aecolor.Palette[0]))
	*now = now.Add(time.Second)
	_, _ = s.CreateAE(ctx, "B", strp(aecolor.Palette[0]))
	*now = now.Add(time.Second)
	_, _ = s.CreateAE(ctx, "C", nil)

	res, err := s.ReconcileAEColors(ctx)
	if err != nil {
		t.Fatalf("ReconcileAEColors: %v", err)
	}
	if res.Changed() != 2 {
		t.Fatalf("changes = %+v", res.Changes)
	}

	aes, _ := s.ListAEs(ctx)
	seen := map[string]string{}
	for _, ae := range aes {
		if ae.Color == nil {
			t.Fatalf("%s still has no color", ae.Name)
		}
		if other, dup := seen[*ae.Color]; dup {
			t.Fatalf("%s and %s share %s", ae.Name, other, *ae.Color)
		}
		seen[*ae.Color] = ae.Name
	}
	if seen[aecolor.Palette[0]] != a.Name {
		t.Fatalf("oldest holder should keep its color: %v", seen)
	}
	again, err := s.ReconcileAEColors(ctx)
	if err != nil || again.Changed() != 0 {
		t.Fatalf("second reconcile should be a no-op: %+v %v", again, err)
	}
}

func TestResolveOrCreate_IsIdempotentAcrossCase(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	id1, err := s.ResolveOrCreateAccount(ctx, "Acme")
	if err != nil {
		t.Fatalf("ResolveOrCreateAccount: %v", err)
	}
	id2, err := s.ResolveOrCreateAccount(ctx, " ACME ")
	if err != nil || id2 != id1 {
		t.Fatalf("second resolve = %q %v, want %q", id2, err, id1)
	}
	if _, err := s.ResolveOrCreateAE(ctx, ""); !errors.As(err, new(ValidationError)) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
