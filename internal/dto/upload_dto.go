package dto

// AnswerImageResponse describes a stored answer image returned to the client.
// URL and Key feed straight into SubmissionCreateRequest.Images.
type AnswerImageResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}
