// Package registry holds the in-memory view of remote folder listings and
// reconciles pipeline outcomes with background refreshes.
package registry

import (
	"errors"
	"sync"

	"drive-media-compressor/domain/drive"
)

// ErrFileNotFound is returned when an id is not in the folder's listing
var ErrFileNotFound = errors.New("file not in listing")

// OutcomeKind names what a finished operation did to a folder
type OutcomeKind int

const (
	// OutcomeReplaced means FileID was re-uploaded as File
	OutcomeReplaced OutcomeKind = iota + 1
	// OutcomeUploaded means File was created in the folder
	OutcomeUploaded
	// OutcomeDeleted means FileID no longer exists
	OutcomeDeleted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeReplaced:
		return "replaced"
	case OutcomeUploaded:
		return "uploaded"
	case OutcomeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Outcome is one confirmed change to a folder
type Outcome struct {
	Kind     OutcomeKind
	FolderID string
	FileID   string     // the entry being replaced or deleted
	File     drive.File // the new entry for replaced and uploaded outcomes
}

// RefreshTicket identifies one listing fetch in flight
type RefreshTicket struct {
	FolderID string
	id       uint64
	after    uint64 // outcomes with a higher sequence are replayed on completion
}

type journalEntry struct {
	seq     uint64
	outcome Outcome
}

// Registry keeps one listing per visited folder. It is mutated only by
// completed refreshes and applied outcomes.
type Registry struct {
	mu       sync.Mutex
	listings map[string][]drive.File
	seq      uint64
	journal  []journalEntry
	tickets  map[uint64]RefreshTicket
	latest   map[string]uint64 // newest completed ticket per folder
	nextID   uint64
	preview  *drive.File
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		listings: make(map[string][]drive.File),
		tickets:  make(map[uint64]RefreshTicket),
		latest:   make(map[string]uint64),
	}
}

// Loaded reports whether a listing has been fetched for the folder
func (r *Registry) Loaded(folderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.listings[folderID]
	return ok
}

// Listing returns a copy of the folder's entries in display order
func (r *Registry) Listing(folderID string) []drive.File {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneFiles(r.listings[folderID])
}

// File looks up one entry by id
func (r *Registry) File(folderID, fileID string) (drive.File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := indexOf(r.listings[folderID], fileID)
	if i < 0 {
		return drive.File{}, false
	}
	return r.listings[folderID][i], true
}

// Stats recomputes the folder's aggregates from its current listing
func (r *Registry) Stats(folderID string) drive.ListingStats {
	return drive.ComputeStats(r.Listing(folderID))
}

// BeginRefresh records that a listing fetch for the folder has started.
// Outcomes applied after this call survive the refresh.
func (r *Registry) BeginRefresh(folderID string) RefreshTicket {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t := RefreshTicket{FolderID: folderID, id: r.nextID, after: r.seq}
	r.tickets[t.id] = t
	return t
}

// CompleteRefresh replaces the folder's listing with the fetched files, then
// replays every outcome applied since the ticket was issued. It returns false
// when a newer refresh of the same folder already completed.
func (r *Registry) CompleteRefresh(t RefreshTicket, files []drive.File) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.release(t)

	if t.id < r.latest[t.FolderID] {
		return false
	}
	r.latest[t.FolderID] = t.id

	listing := cloneFiles(files)
	for _, e := range r.journal {
		if e.seq > t.after && e.outcome.FolderID == t.FolderID {
			listing = apply(listing, e.outcome)
		}
	}
	r.listings[t.FolderID] = listing
	r.syncPreview()
	return true
}

// AbandonRefresh releases a ticket whose fetch failed
func (r *Registry) AbandonRefresh(t RefreshTicket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release(t)
}

// ApplyOutcome patches the folder's listing with a confirmed change.
// Folders that were never listed are left alone until their first refresh.
func (r *Registry) ApplyOutcome(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	if len(r.tickets) > 0 {
		r.journal = append(r.journal, journalEntry{seq: r.seq, outcome: o})
	}

	if listing, ok := r.listings[o.FolderID]; ok {
		r.listings[o.FolderID] = apply(listing, o)
	}
	if r.preview != nil && r.preview.ID == o.FileID {
		switch o.Kind {
		case OutcomeDeleted:
			r.preview = nil
		case OutcomeReplaced:
			f := o.File
			r.preview = &f
		}
	}
	r.syncPreview()
}

// OpenPreview marks an entry as shown in the preview
func (r *Registry) OpenPreview(folderID, fileID string) (drive.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := indexOf(r.listings[folderID], fileID)
	if i < 0 {
		return drive.File{}, ErrFileNotFound
	}
	f := r.listings[folderID][i]
	r.preview = &f
	return f, nil
}

// Preview returns the entry open in the preview, if any
func (r *Registry) Preview() (drive.File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.preview == nil {
		return drive.File{}, false
	}
	return *r.preview, true
}

// ClosePreview closes the preview
func (r *Registry) ClosePreview() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preview = nil
}

// release drops a ticket and trims journal entries no open ticket can replay
func (r *Registry) release(t RefreshTicket) {
	delete(r.tickets, t.id)
	if len(r.tickets) == 0 {
		r.journal = nil
		return
	}
	oldest := r.seq
	for _, open := range r.tickets {
		if open.after < oldest {
			oldest = open.after
		}
	}
	kept := r.journal[:0]
	for _, e := range r.journal {
		if e.seq > oldest {
			kept = append(kept, e)
		}
	}
	r.journal = kept
}

// syncPreview keeps the preview pointing at the current version of its entry
func (r *Registry) syncPreview() {
	if r.preview == nil {
		return
	}
	for _, listing := range r.listings {
		if i := indexOf(listing, r.preview.ID); i >= 0 {
			f := listing[i]
			r.preview = &f
			return
		}
	}
}

// apply returns the listing with one outcome merged in. Applying the same
// outcome twice leaves the listing unchanged.
func apply(listing []drive.File, o Outcome) []drive.File {
	switch o.Kind {
	case OutcomeReplaced:
		oldIdx := indexOf(listing, o.FileID)
		newIdx := indexOf(listing, o.File.ID)
		switch {
		case oldIdx >= 0:
			listing[oldIdx] = o.File
			if newIdx >= 0 && newIdx != oldIdx {
				listing = removeAt(listing, newIdx)
			}
		case newIdx >= 0:
			listing[newIdx] = o.File
		default:
			listing = append(listing, o.File)
		}
	case OutcomeUploaded:
		if i := indexOf(listing, o.File.ID); i >= 0 {
			listing[i] = o.File
		} else {
			listing = append(listing, o.File)
		}
	case OutcomeDeleted:
		if i := indexOf(listing, o.FileID); i >= 0 {
			listing = removeAt(listing, i)
		}
	}
	return listing
}

func indexOf(files []drive.File, id string) int {
	for i, f := range files {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func removeAt(files []drive.File, i int) []drive.File {
	return append(files[:i:i], files[i+1:]...)
}

func cloneFiles(files []drive.File) []drive.File {
	if files == nil {
		return nil
	}
	out := make([]drive.File, len(files))
	copy(out, files)
	return out
}
