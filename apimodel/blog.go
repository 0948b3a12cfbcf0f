package apimodel

// UserProfile is an element of GET /api/{username}/data. The API answers with an array and only the
// first element is meaningful.
type UserProfile struct {
	ID        int64  `json:"id,omitempty"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Blog is a post as listed by GET /api/blogs and GET /api/blogs/{id}
type Blog struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Picture is an image attached to a blog, returned by GET /api/blogs/{id}/images
type Picture struct {
	ID     int64  `json:"id"`
	BlogID int64  `json:"blogid"`
	Author string `json:"author"`

	// ImageBlob is the base64 encoded JPEG.
	// Usage: "data:image/jpeg;base64,<image_blob>"
	ImageBlob string `json:"image_blob"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
