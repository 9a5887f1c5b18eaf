package todo

import (
	"slices"
	"sync"
)

// Msg is a state change for a Collection.
type Msg interface {
	apply(c *Collection)
}

// Replaced swaps the whole view for a fresh listing.
type Replaced struct {
	Items  []Todo
	Filter Filter
}

// Inserted puts a newly created todo at the front.
type Inserted struct {
	Item Todo
}

// Patched replaces a todo with the server's copy.
type Patched struct {
	Item Todo
}

// Removed drops one todo.
type Removed struct {
	ID int64
}

// RemovedMany drops several todos in one step.
type RemovedMany struct {
	IDs []int64
}

// AttachmentRemoved drops one attachment from a todo.
type AttachmentRemoved struct {
	TodoID       int64
	AttachmentID int64
}

// Collection is the local view of the server's todo list for the current
// filter. It is the only place the view changes; every change arrives as a
// Msg tagged with the epoch it was started in.
type Collection struct {
	mu      sync.Mutex
	epoch   uint64
	loaded  bool
	filter  Filter
	items   []Todo
	editing *Todo
}

// NewCollection returns an empty, unloaded collection.
func NewCollection() *Collection {
	return &Collection{filter: Filter{Status: FilterAll}}
}

// Epoch returns the current epoch. Operations capture it before their
// network call and pass it back to Apply.
func (c *Collection) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Apply applies msg if epoch is still current and reports whether it did.
func (c *Collection) Apply(epoch uint64, msg Msg) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return false
	}
	msg.apply(c)
	return true
}

// Close makes every response started before it inert and drops the edit
// view. The collection can be reloaded afterwards.
func (c *Collection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.editing = nil
}

// Loaded reports whether a listing has been applied.
func (c *Collection) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Filter returns the criteria of the last listing.
func (c *Collection) Filter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Items returns a copy of the view in server order.
func (c *Collection) Items() []Todo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Visible returns the view narrowed to its filter. Local patches and
// inserts can leave todos in the view that the filter no longer admits.
func (c *Collection) Visible() []Todo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Visible(c.items, c.filter)
}

// Len returns the number of todos in the view.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Get returns the todo with id from the view.
func (c *Collection) Get(id int64) (Todo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	return Todo{}, false
}

// Edit opens the edit view on a todo from the collection.
func (c *Collection) Edit(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return false
	}
	item := c.items[i]
	item.Attachments = slices.Clone(item.Attachments)
	c.editing = &item
	return true
}

// Editing returns the todo in the edit view.
func (c *Collection) Editing() (Todo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return Todo{}, false
	}
	return *c.editing, true
}

// CloseEdit closes the edit view.
func (c *Collection) CloseEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editing = nil
}

func (c *Collection) index(id int64) int {
	return slices.IndexFunc(c.items, func(item Todo) bool { return item.ID == id })
}

func (m Replaced) apply(c *Collection) {
	c.items = slices.Clone(m.Items)
	if c.items == nil {
		c.items = []Todo{}
	}
	c.filter = m.Filter
	c.loaded = true
	if c.editing != nil {
		i := c.index(c.editing.ID)
		if i < 0 {
			c.editing = nil
			return
		}
		item := c.items[i]
		item.Attachments = slices.Clone(item.Attachments)
		c.editing = &item
	}
}

func (m Inserted) apply(c *Collection) {
	if i := c.index(m.Item.ID); i >= 0 {
		c.items = slices.Delete(c.items, i, i+1)
	}
	c.items = slices.Insert(c.items, 0, m.Item)
}

func (m Patched) apply(c *Collection) {
	if i := c.index(m.Item.ID); i >= 0 {
		c.items[i] = m.Item
	}
	if c.editing != nil && c.editing.ID == m.Item.ID {
		item := m.Item
		item.Attachments = slices.Clone(item.Attachments)
		c.editing = &item
	}
}

func (m Removed) apply(c *Collection) {
	if i := c.index(m.ID); i >= 0 {
		c.items = slices.Delete(c.items, i, i+1)
	}
	if c.editing != nil && c.editing.ID == m.ID {
		c.editing = nil
	}
}

func (m RemovedMany) apply(c *Collection) {
	drop := make(map[int64]bool, len(m.IDs))
	for _, id := range m.IDs {
		drop[id] = true
	}
	c.items = slices.DeleteFunc(c.items, func(item Todo) bool { return drop[item.ID] })
	if c.editing != nil && drop[c.editing.ID] {
		c.editing = nil
	}
}

func (m AttachmentRemoved) apply(c *Collection) {
	without := func(item *Todo) {
		item.Attachments = slices.DeleteFunc(slices.Clone(item.Attachments), func(a Attachment) bool {
			return a.ID == m.AttachmentID
		})
		if len(item.Attachments) == 0 {
			item.PDFURL = nil
		}
	}
	if i := c.index(m.TodoID); i >= 0 {
		without(&c.items[i])
	}
	if c.editing != nil && c.editing.ID == m.TodoID {
		without(c.editing)
	}
}
