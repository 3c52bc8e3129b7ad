package api

// Keys and values are raw bytes. encoding/json carries them as standard
// base64; path keys are "_" followed by unpadded URL-safe base64.

type GetResponse struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

type PutRequest struct {
	Value []byte `json:"value"`
}

// PrevResponse answers insert and remove with the value the key held
// before the operation.
type PrevResponse struct {
	Existed  bool   `json:"existed"`
	Previous []byte `json:"previous,omitempty"`
}

type Entry struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

type ScanResponse struct {
	Entries []Entry `json:"entries"`
}

type BatchItem struct {
	Op    string `json:"op"`
	Key   []byte `json:"key"`
	Value []byte `json:"value,omitempty"`
}

type BatchRequest struct {
	Items  []BatchItem `json:"items"`
	Atomic bool        `json:"atomic,omitempty"`
}

type Violation struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Key   []byte `json:"key"`
}

type BatchResponse struct {
	Applied    int         `json:"applied"`
	Violations []Violation `json:"violations,omitempty"`
	// Error is set when the batch stopped early. Index is the item that
	// stopped it, or -1 when the whole batch failed.
	Error string `json:"error,omitempty"`
	Index *int   `json:"index,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
