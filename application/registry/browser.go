package registry

import (
	"errors"
	"sync"

	"drive-media-compressor/domain/drive"
)

// ErrNotAFolder is returned when navigating into a file
var ErrNotAFolder = errors.New("not a folder")

// Selection is an ordered set of file ids
type Selection struct {
	ids []string
	set map[string]struct{}
}

// NewSelection creates an empty selection
func NewSelection() *Selection {
	return &Selection{set: make(map[string]struct{})}
}

// Add appends an id unless it is already selected
func (s *Selection) Add(id string) {
	if _, ok := s.set[id]; ok {
		return
	}
	s.set[id] = struct{}{}
	s.ids = append(s.ids, id)
}

// Remove drops an id
func (s *Selection) Remove(id string) {
	if _, ok := s.set[id]; !ok {
		return
	}
	delete(s.set, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i:i], s.ids[i+1:]...)
			break
		}
	}
}

// Has reports whether an id is selected
func (s *Selection) Has(id string) bool {
	_, ok := s.set[id]
	return ok
}

// Clear empties the selection
func (s *Selection) Clear() {
	s.ids = nil
	s.set = make(map[string]struct{})
}

// Len returns the number of selected ids
func (s *Selection) Len() int {
	return len(s.ids)
}

// IDs returns the ids in selection order
func (s *Selection) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Retain drops every id for which keep returns false
func (s *Selection) Retain(keep func(id string) bool) {
	kept := s.ids[:0]
	for _, id := range s.ids {
		if keep(id) {
			kept = append(kept, id)
			continue
		}
		delete(s.set, id)
	}
	s.ids = kept
}

// Browser is the navigation state of one view: the breadcrumb path and the
// selection within the active folder
type Browser struct {
	mu        sync.Mutex
	registry  *Registry
	path      drive.FolderPath
	selection *Selection
}

// NewBrowser creates a browser positioned at the root
func NewBrowser(reg *Registry) *Browser {
	return &Browser{
		registry:  reg,
		path:      drive.NewFolderPath(),
		selection: NewSelection(),
	}
}

// Path returns the breadcrumb path
func (b *Browser) Path() drive.FolderPath {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.path
}

// FolderID returns the active folder
func (b *Browser) FolderID() string {
	return b.Path().Current().ID
}

// Listing returns the active folder's entries
func (b *Browser) Listing() []drive.File {
	return b.registry.Listing(b.FolderID())
}

// Enter navigates into a folder of the active listing
func (b *Browser) Enter(folderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.registry.File(b.path.Current().ID, folderID)
	if !ok {
		return ErrFileNotFound
	}
	if !f.IsFolder() {
		return ErrNotAFolder
	}
	b.path = b.path.Enter(f.ID, f.Name)
	b.selection.Clear()
	return nil
}

// Up navigates to the parent folder
func (b *Browser) Up() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.path = b.path.Up()
	b.selection.Clear()
}

// JumpTo navigates to a breadcrumb entry
func (b *Browser) JumpTo(index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.path = b.path.Truncate(index)
	b.selection.Clear()
}

// Select adds an entry of the active listing to the selection
func (b *Browser) Select(ids ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	folderID := b.path.Current().ID
	for _, id := range ids {
		if _, ok := b.registry.File(folderID, id); !ok {
			return ErrFileNotFound
		}
	}
	for _, id := range ids {
		b.selection.Add(id)
	}
	return nil
}

// Toggle flips an entry's selection
func (b *Browser) Toggle(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.selection.Has(id) {
		b.selection.Remove(id)
		return nil
	}
	if _, ok := b.registry.File(b.path.Current().ID, id); !ok {
		return ErrFileNotFound
	}
	b.selection.Add(id)
	return nil
}

// SelectAll selects every non-folder entry of the active listing
func (b *Browser) SelectAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range b.registry.Listing(b.path.Current().ID) {
		if !f.IsFolder() {
			b.selection.Add(f.ID)
		}
	}
}

// ClearSelection empties the selection
func (b *Browser) ClearSelection() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selection.Clear()
}

// Selected returns the selected ids in selection order, pruning ids that
// have left the active listing
func (b *Browser) Selected() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune()
	return b.selection.IDs()
}

// SelectedFiles returns the selected entries in selection order
func (b *Browser) SelectedFiles() []drive.File {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune()

	folderID := b.path.Current().ID
	files := make([]drive.File, 0, b.selection.Len())
	for _, id := range b.selection.IDs() {
		if f, ok := b.registry.File(folderID, id); ok {
			files = append(files, f)
		}
	}
	return files
}

func (b *Browser) prune() {
	folderID := b.path.Current().ID
	b.selection.Retain(func(id string) bool {
		_, ok := b.registry.File(folderID, id)
		return ok
	})
}
