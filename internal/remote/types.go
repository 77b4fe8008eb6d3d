package remote

// Dataset is one entry of GET /teams/{team}/datasets.
type Dataset struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	NumImages int     `json:"num_images"`
	NumVideos int     `json:"num_videos"`
	Progress  float64 `json:"progress"`
}

// ItemCount is the number of items the remote service reports for the dataset.
func (d Dataset) ItemCount() int {
	return d.NumImages + d.NumVideos
}

// Item is one record of the v2 item listing. Parsing into the domain type
// happens in the dataset package.
type Item struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Archived  bool   `json:"archived"`
	Path      string `json:"path"`
	Type      string `json:"type,omitempty"`
	DatasetID int    `json:"dataset_id"`
	Priority  int    `json:"priority"`
	Slots     []Slot `json:"slots"`
}

type Slot struct {
	Name     string `json:"slot_name"`
	Type     string `json:"type"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size_bytes,omitempty"`
}

// ItemsPage is the response body of the item listing endpoint.
type ItemsPage struct {
	Items []Item   `json:"items"`
	Page  PageInfo `json:"page"`
}

// PageInfo carries the server-declared continuation token. A nil or empty
// Next means the listing is exhausted.
type PageInfo struct {
	Next     *string `json:"next"`
	Previous *string `json:"previous,omitempty"`
}

// NextToken returns the continuation token and whether one was declared.
func (p PageInfo) NextToken() (string, bool) {
	if p.Next == nil || *p.Next == "" {
		return "", false
	}
	return *p.Next, true
}

// RegisterUploadRequest is the body of POST /v2/teams/{team}/items/register_upload.
type RegisterUploadRequest struct {
	DatasetSlug string       `json:"dataset_slug"`
	Items       []UploadItem `json:"items"`
}

type UploadItem struct {
	Name  string       `json:"name"`
	Path  string       `json:"path"`
	Slots []UploadSlot `json:"slots"`
}

type UploadSlot struct {
	SlotName string  `json:"slot_name"`
	FileName string  `json:"file_name"`
	FPS      float64 `json:"fps,omitempty"`
	AsFrames bool    `json:"as_frames,omitempty"`
}

type RegisterUploadResponse struct {
	Items        []RegisteredItem `json:"items"`
	BlockedItems []BlockedItem    `json:"blocked_items"`
}

type RegisteredItem struct {
	ID    int64            `json:"id"`
	Name  string           `json:"name"`
	Path  string           `json:"path"`
	Slots []RegisteredSlot `json:"slots"`
}

type RegisteredSlot struct {
	SlotName string `json:"slot_name"`
	FileName string `json:"file_name"`
	UploadID string `json:"upload_id"`
}

type BlockedItem struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// SignedUpload is the response of the upload signing endpoint.
type SignedUpload struct {
	UploadURL string `json:"upload_url"`
}
