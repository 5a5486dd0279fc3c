package models

import "time"

// ItemKind distinguishes the record types a platform page can carry
type ItemKind string

const (
	ItemKindPost    ItemKind = "post"
	ItemKindComment ItemKind = "comment"
	ItemKindUser    ItemKind = "user"
)

// Post is a scraped forum submission
type Post struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Body      string    `json:"body,omitempty"`
	URL       string    `json:"url,omitempty"`
	Score     int       `json:"score"`
	Comments  int       `json:"comments"`
	Subforum  string    `json:"subforum,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Comment is a scraped reply to a post
type Comment struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	PostID    string    `json:"post_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// User is a scraped account profile
type User struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Username  string    `json:"username"`
	Karma     int       `json:"karma"`
	CreatedAt time.Time `json:"created_at"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Item wraps one scraped record of any kind. Exactly one of Post, Comment or
// User is set, matching Kind.
type Item struct {
	Kind    ItemKind `json:"kind"`
	Post    *Post    `json:"post,omitempty"`
	Comment *Comment `json:"comment,omitempty"`
	User    *User    `json:"user,omitempty"`
}

// Batch groups the records from one fetched page for a single atomic commit
type Batch struct {
	Posts    []Post
	Comments []Comment
	Users    []User
}

// Split partitions items into a Batch by kind
func Split(items []Item) Batch {
	var b Batch
	for _, it := range items {
		switch it.Kind {
		case ItemKindPost:
			if it.Post != nil {
				b.Posts = append(b.Posts, *it.Post)
			}
		case ItemKindComment:
			if it.Comment != nil {
				b.Comments = append(b.Comments, *it.Comment)
			}
		case ItemKindUser:
			if it.User != nil {
				b.Users = append(b.Users, *it.User)
			}
		}
	}
	return b
}

// Size returns the total number of records in the batch
func (b Batch) Size() int {
	return len(b.Posts) + len(b.Comments) + len(b.Users)
}
