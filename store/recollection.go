package store

// Recollection is the stored row of a persona recollection.
// Payload holds the full structured record as JSON; Kind, Title and Content
// are duplicated as columns for filtering and listing.
type Recollection struct {
	ID        string
	PersonaID string
	Kind      string
	Title     string
	Content   string
	Payload   string
	Embedding []float32
	CreatedTs int64
	UpdatedTs int64
}

// FindRecollection specifies the conditions for finding recollections.
type FindRecollection struct {
	ID        *string
	PersonaID *string
	Kind      *string
	Limit     int
	Offset    int
}

// UpdateRecollection replaces the mutable columns of one recollection.
type UpdateRecollection struct {
	ID        string
	PersonaID string
	Kind      string
	Title     string
	Content   string
	Payload   string
	Embedding []float32
	UpdatedTs int64
}

// DeleteRecollection specifies the conditions for deleting recollections.
// PersonaID is required; ID narrows the delete to one record.
type DeleteRecollection struct {
	ID        *string
	PersonaID string
}

// SearchRecollection is a similarity search over one persona's recollections.
type SearchRecollection struct {
	PersonaID string
	Vector    []float32
	Limit     int
}

// RecollectionMatch is a search hit with its distance to the query.
type RecollectionMatch struct {
	Recollection *Recollection
	Distance     float64
}
