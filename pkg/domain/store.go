package domain

// DefaultIDField is the object field used by the bundled stores to identify records.
const DefaultIDField = "id"

// SearchRequest is the query descriptor passed to a task store.
type SearchRequest struct {
	SearchParams map[string]any `json:"searchParams"`
}

// UpdateResult is what a task store returns after persisting an object.
type UpdateResult struct {
	Object Object `json:"object"`
}
