package drive

import (
	"sort"
	"strings"
	"time"
)

// MIME type constants for Drive-native entries
const (
	MimeTypeFolder      = "application/vnd.google-apps.folder"
	MimeTypeOctetStream = "application/octet-stream"
)

// RootFolderID is the alias Drive uses for the top of "My Drive"
const RootFolderID = "root"

// File represents one file or folder known to the remote drive.
// ID is the only stable identity; names may collide.
type File struct {
	ID             string
	Name           string
	MimeType       string
	Size           int64
	SizeKnown      bool // Drive omits size for folders and native documents
	CreatedTime    time.Time
	ModifiedTime   time.Time
	ThumbnailLink  string
	WebViewLink    string
	WebContentLink string
}

// IsFolder reports whether the entry is a Drive folder
func (f File) IsFolder() bool {
	return f.MimeType == MimeTypeFolder
}

// IsImage reports whether the entry carries an image content type
func (f File) IsImage() bool {
	return strings.HasPrefix(f.MimeType, "image/")
}

// IsVideo reports whether the entry carries a video content type
func (f File) IsVideo() bool {
	return strings.HasPrefix(f.MimeType, "video/")
}

// CanPreview reports whether the file is media that can be previewed or compressed
func (f File) CanPreview() bool {
	return f.IsImage() || f.IsVideo()
}

// Category groups files the way the dashboard reports them
type Category string

const (
	CategoryDocument Category = "document"
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryOther    Category = "other"
)

// Category classifies the file by its MIME type
func (f File) Category() Category {
	switch {
	case strings.Contains(f.MimeType, "document"),
		strings.Contains(f.MimeType, "text"),
		strings.Contains(f.MimeType, "pdf"):
		return CategoryDocument
	case strings.Contains(f.MimeType, "image"):
		return CategoryImage
	case strings.Contains(f.MimeType, "video"):
		return CategoryVideo
	default:
		return CategoryOther
	}
}

// SortListing orders files folders-first, then by most recent modification.
// Ties keep their original relative order.
func SortListing(files []File) {
	sort.SliceStable(files, func(i, j int) bool {
		fi, fj := files[i].IsFolder(), files[j].IsFolder()
		if fi != fj {
			return fi
		}
		return files[i].ModifiedTime.After(files[j].ModifiedTime)
	})
}

// Quota represents Drive storage quota information
type Quota struct {
	LimitBytes        int64 // 0 when the account has no limit
	UsageBytes        int64
	UsageInDriveBytes int64
	UsageInTrashBytes int64
}

// Unlimited reports whether the account has no storage limit
func (q Quota) Unlimited() bool {
	return q.LimitBytes == 0
}

// AvailableBytes returns the remaining space, or -1 for unlimited accounts
func (q Quota) AvailableBytes() int64 {
	if q.Unlimited() {
		return -1
	}
	if q.UsageBytes > q.LimitBytes {
		return 0
	}
	return q.LimitBytes - q.UsageBytes
}

// User represents the Drive account owner
type User struct {
	DisplayName  string
	EmailAddress string
	PhotoLink    string
}

// Account bundles the quota and user returned by the about endpoint
type Account struct {
	Quota Quota
	User  User
}
