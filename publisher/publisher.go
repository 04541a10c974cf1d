// ABOUTME: Publisher interface for pushing finished posts to a social platform.
package publisher

import "context"

// Post is the finished content handed to a publisher: the caption text and
// an optional reference to a rendered image.
type Post struct {
	Text     string
	ImageRef string
}

// Publisher pushes a post to a social platform and returns the platform's
// post identifier.
type Publisher interface {
	Publish(ctx context.Context, post Post) (string, error)
}
