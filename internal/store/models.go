package store

import "time"

type CodeBlock struct {
	ID          string
	Title       string
	Description string
	InitialCode string
	Solution    string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
