package models

// File is immutable after upload except for Comment. SharedLink is the
// opaque token the public download URL is built from.
type File struct {
	ID           int64  `json:"id"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	Comment      string `json:"comment"`
	SharedLink   string `json:"shared_link"`
}
