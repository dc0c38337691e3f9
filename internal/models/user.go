package models

// User is the account record as the backend serializes it. StorageUsed and
// MaxStorage are always bytes on the wire; GiB exists only in the UI layer.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	StorageUsed int64  `json:"storage_usage"`
	MaxStorage  int64  `json:"max_storage"`
}
