package models

import (
	"io"
	"time"
)

// FolderMimeType marks a Drive file as a folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// File is the metadata of a provider-held file or folder. The gateway never
// keeps a copy; every read goes back to the provider.
type File struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	MimeType       string    `json:"mimeType"`
	Size           int64     `json:"size"`
	Parents        []string  `json:"parents,omitempty"`
	CreatedTime    time.Time `json:"createdTime,omitzero"`
	ModifiedTime   time.Time `json:"modifiedTime,omitzero"`
	WebViewLink    string    `json:"webViewLink,omitempty"`
	WebContentLink string    `json:"webContentLink,omitempty"`
	Description    string    `json:"description,omitempty"`
	IsFolder       bool      `json:"isFolder"`
}

// FileList is one page of a listing or search.
type FileList struct {
	Files         []*File
	NextPageToken string
}

// ListQuery narrows a listing. An empty FolderID lists everything the
// credential can see; NameContains turns the listing into a search.
type ListQuery struct {
	FolderID     string
	NameContains string
	Limit        int
	PageToken    string
}

// UploadSpec describes one upload. Body is read exactly once.
type UploadSpec struct {
	Body     io.Reader
	Name     string
	ParentID string
	MimeType string
}

// FolderSpec describes a folder to create.
type FolderSpec struct {
	Name     string
	ParentID string
}
