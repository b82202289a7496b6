package drive

import "strings"

// RootFolderName is the display name of the root breadcrumb
const RootFolderName = "My Drive"

// Crumb is one breadcrumb entry
type Crumb struct {
	ID   string
	Name string
}

// FolderPath is the ordered chain of ancestors from the root to the active folder.
// The first entry is always the root and the last entry is the active folder.
type FolderPath struct {
	crumbs []Crumb
}

// NewFolderPath returns a path positioned at the root
func NewFolderPath() FolderPath {
	return FolderPath{crumbs: []Crumb{{ID: RootFolderID, Name: RootFolderName}}}
}

// Current returns the active folder
func (p FolderPath) Current() Crumb {
	if len(p.crumbs) == 0 {
		return Crumb{ID: RootFolderID, Name: RootFolderName}
	}
	return p.crumbs[len(p.crumbs)-1]
}

// Depth returns the number of entries, including the root
func (p FolderPath) Depth() int {
	if len(p.crumbs) == 0 {
		return 1
	}
	return len(p.crumbs)
}

// Crumbs returns a copy of the breadcrumb entries
func (p FolderPath) Crumbs() []Crumb {
	if len(p.crumbs) == 0 {
		return NewFolderPath().Crumbs()
	}
	out := make([]Crumb, len(p.crumbs))
	copy(out, p.crumbs)
	return out
}

// Enter returns a path one level deeper
func (p FolderPath) Enter(id, name string) FolderPath {
	crumbs := p.Crumbs()
	return FolderPath{crumbs: append(crumbs, Crumb{ID: id, Name: name})}
}

// Up returns the parent path. The root has no parent and is returned unchanged.
func (p FolderPath) Up() FolderPath {
	crumbs := p.Crumbs()
	if len(crumbs) <= 1 {
		return FolderPath{crumbs: crumbs}
	}
	return FolderPath{crumbs: crumbs[:len(crumbs)-1]}
}

// Truncate keeps entries 0..index. Out of range indexes return the path unchanged.
func (p FolderPath) Truncate(index int) FolderPath {
	crumbs := p.Crumbs()
	if index < 0 || index >= len(crumbs) {
		return FolderPath{crumbs: crumbs}
	}
	return FolderPath{crumbs: crumbs[:index+1]}
}

// String renders the path as "My Drive / Photos / 2024"
func (p FolderPath) String() string {
	names := make([]string, 0, p.Depth())
	for _, c := range p.Crumbs() {
		names = append(names, c.Name)
	}
	return strings.Join(names, " / ")
}
