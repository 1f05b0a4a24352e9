package dto

// CreateUserRequest is the admin payload for adding a user.
type CreateUserRequest struct {
	Username       string  `json:"username" validate:"required,min=3,max=64,alphanumunicode"`
	Password       string  `json:"password" validate:"required,min=8"`
	DisplayName    string  `json:"display_name" validate:"required,max=128"`
	Role           string  `json:"role" validate:"required,oneof=admin supervisor user"`
	SupervisorType *string `json:"supervisor_type" validate:"omitempty,max=64"`
}

// UpdateUserRequest changes the editable fields of a user. Nil fields are left unchanged.
type UpdateUserRequest struct {
	DisplayName    *string `json:"display_name" validate:"omitempty,min=1,max=128"`
	Role           *string `json:"role" validate:"omitempty,oneof=admin supervisor user"`
	SupervisorType *string `json:"supervisor_type" validate:"omitempty,max=64"`
}

// AttachmentResponse describes a stored attachment.
type AttachmentResponse struct {
	Ref  string `json:"ref"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// SignedURLResponse carries a time-limited download link.
type SignedURLResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}
