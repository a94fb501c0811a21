package model

// Dialect captures what differs between the SQL stores a ResourceModel can
// sit on. Placeholders are written as '?' and rebound by sqlx.
type Dialect interface {
	// CreateResourceTable returns the DDL creating the resources table if absent.
	CreateResourceTable() string
	// IsConstraintViolation reports whether err is a NOT NULL/UNIQUE/CHECK failure.
	IsConstraintViolation(err error) bool
}
