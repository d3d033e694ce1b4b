package models

// AttachmentMediaTypeSource records how media_type was determined.
type AttachmentMediaTypeSource string

const (
	MediaTypeSourceSniffed  AttachmentMediaTypeSource = "sniffed"
	MediaTypeSourceDeclared AttachmentMediaTypeSource = "declared"
)

// Attachment describes the image file currently referenced by a task.
type Attachment struct {
	TaskID          int64  `json:"task_id"`
	Filename        string `json:"filename"`
	MediaType       string `json:"media_type,omitempty"`
	MediaTypeSource string `json:"media_type_source,omitempty"`
	SizeBytes       int64  `json:"size_bytes"`
	// ReplacedFilename is set when the upload displaced a previous file.
	ReplacedFilename string `json:"replaced_filename,omitempty"`
}
