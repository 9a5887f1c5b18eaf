package todo

import (
	"context"
	"errors"
	"io"
	"slices"

	"github.com/amonks/taskdash/api"
	"github.com/charmbracelet/log"
)

// Session is the credential accessor the syncer depends on.
type Session interface {
	Token() (string, bool)
	// Expire is called when the server rejects the token.
	Expire()
}

// Options configures a Syncer.
type Options struct {
	Logger *log.Logger
}

// Syncer runs todo operations against the API and applies their results
// to a Collection.
//
// Concurrent mutations of the same todo are not sequenced: whichever
// response is applied last wins.
type Syncer struct {
	session    Session
	client     *api.Client
	collection *Collection
	logger     *log.Logger
}

// NewSyncer binds client to session, so every call carries the session's
// token and a rejected token expires it.
func NewSyncer(session Session, client *api.Client, collection *Collection, opts Options) *Syncer {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if collection == nil {
		collection = NewCollection()
	}
	return &Syncer{
		session:    session,
		client:     client.WithTokens(session, session.Expire),
		collection: collection,
		logger:     logger,
	}
}

// Collection returns the view the syncer maintains.
func (s *Syncer) Collection() *Collection {
	return s.collection
}

func (s *Syncer) begin() (uint64, error) {
	if token, ok := s.session.Token(); !ok || token == "" {
		return 0, &api.AuthError{Kind: api.Unauthenticated}
	}
	return s.collection.Epoch(), nil
}

// List fetches the todos matching filter and replaces the view with them.
func (s *Syncer) List(ctx context.Context, filter Filter) ([]Todo, error) {
	epoch, err := s.begin()
	if err != nil {
		return nil, err
	}
	if filter.Status == "" {
		filter.Status = FilterAll
	}
	page, err := s.client.ListTodos(ctx, filter.query())
	if err != nil {
		return nil, api.Classify(err)
	}
	s.collection.Apply(epoch, Replaced{Items: page.Data, Filter: filter})
	return page.Data, nil
}

// Reload repeats the last listing.
func (s *Syncer) Reload(ctx context.Context) ([]Todo, error) {
	return s.List(ctx, s.collection.Filter())
}

// Get fetches one todo and refreshes it in the view.
func (s *Syncer) Get(ctx context.Context, id int64) (*Todo, error) {
	epoch, err := s.begin()
	if err != nil {
		return nil, err
	}
	item, err := s.client.GetTodo(ctx, id)
	if err != nil {
		err = api.Classify(err)
		if errors.Is(err, api.ErrNotFound) {
			s.collection.Apply(epoch, Removed{ID: id})
		}
		return nil, err
	}
	s.collection.Apply(epoch, Patched{Item: *item})
	return item, nil
}

// Create validates draft and upload locally, then creates the todo and
// puts it at the front of the view. On failure the view is untouched.
func (s *Syncer) Create(ctx context.Context, draft Draft, upload *Upload) (*Todo, error) {
	fields, err := draft.fields()
	if err != nil {
		return nil, err
	}
	if upload != nil {
		if err := upload.Check(); err != nil {
			return nil, err
		}
	}
	epoch, err := s.begin()
	if err != nil {
		return nil, err
	}

	item, err := s.client.CreateTodo(ctx, fields, upload.file())
	if err != nil {
		return nil, api.Classify(err)
	}
	s.collection.Apply(epoch, Inserted{Item: *item})
	s.logger.Debug("created todo", "id", item.ID)
	return item, nil
}

// Update changes the given fields and re-reads the todo so derived fields
// such as IsOverdue are current.
func (s *Syncer) Update(ctx context.Context, id int64, patch Patch, upload *Upload) (*Todo, error) {
	if err := validatePatch(patch, upload != nil); err != nil {
		return nil, err
	}
	if upload != nil {
		if err := upload.Check(); err != nil {
			return nil, err
		}
	}
	epoch, err := s.begin()
	if err != nil {
		return nil, err
	}

	item, err := s.client.UpdateTodo(ctx, id, patch, upload.file())
	if err != nil {
		return nil, s.reconcile(ctx, epoch, api.Classify(err))
	}
	if fresh, err := s.client.GetTodo(ctx, id); err != nil {
		s.logger.Debug("re-read after update failed", "id", id, "err", err)
	} else {
		item = fresh
	}
	s.collection.Apply(epoch, Patched{Item: *item})
	return item, nil
}

// SetStatus moves a todo to status. Both directions are supported.
func (s *Syncer) SetStatus(ctx context.Context, id int64, status Status) (*Todo, error) {
	if err := ValidateStatus(status); err != nil {
		return nil, err
	}
	return s.Update(ctx, id, Patch{Status: &status}, nil)
}

// Toggle flips the status of a todo in the view.
func (s *Syncer) Toggle(ctx context.Context, id int64) (*Todo, error) {
	item, ok := s.collection.Get(id)
	if !ok {
		return nil, ErrTodoNotFound
	}
	next := StatusCompleted
	if item.Status == StatusCompleted {
		next = StatusPending
	}
	return s.SetStatus(ctx, id, next)
}

// Remove deletes a todo. The view changes only after the server confirms.
func (s *Syncer) Remove(ctx context.Context, id int64) error {
	epoch, err := s.begin()
	if err != nil {
		return err
	}
	if err := s.client.DeleteTodo(ctx, id); err != nil {
		return s.reconcile(ctx, epoch, api.Classify(err))
	}
	s.collection.Apply(epoch, Removed{ID: id})
	return nil
}

// BulkRemove deletes several todos in one request. The API reports a
// single status, so the result is all or nothing.
func (s *Syncer) BulkRemove(ctx context.Context, ids []int64) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}
	epoch, err := s.begin()
	if err != nil {
		return err
	}
	if err := s.client.BulkDeleteTodos(ctx, ids); err != nil {
		return s.reconcile(ctx, epoch, api.Classify(err))
	}
	s.collection.Apply(epoch, RemovedMany{IDs: ids})
	return nil
}

// RemoveAttachment deletes one attachment and updates both the view and
// any open edit view of the todo.
func (s *Syncer) RemoveAttachment(ctx context.Context, todoID, attachmentID int64) error {
	epoch, err := s.begin()
	if err != nil {
		return err
	}
	if err := s.client.DeleteAttachment(ctx, todoID, attachmentID); err != nil {
		return s.reconcile(ctx, epoch, api.Classify(err))
	}
	s.collection.Apply(epoch, AttachmentRemoved{TodoID: todoID, AttachmentID: attachmentID})
	if fresh, err := s.client.GetTodo(ctx, todoID); err == nil {
		s.collection.Apply(epoch, Patched{Item: *fresh})
	}
	return nil
}

// reconcile re-reads the last listing when a failed mutation may have been
// applied anyway. If the re-read fails too the view is kept as it was.
func (s *Syncer) reconcile(ctx context.Context, epoch uint64, err error) error {
	if !api.IsAmbiguous(err) || !s.collection.Loaded() {
		return err
	}
	filter := s.collection.Filter()
	page, listErr := s.client.ListTodos(ctx, filter.query())
	if listErr != nil {
		s.logger.Debug("re-read after failed mutation", "err", listErr)
		return err
	}
	s.collection.Apply(epoch, Replaced{Items: page.Data, Filter: filter})
	return err
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
