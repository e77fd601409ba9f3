package models

import "time"

// AudioFile references an uploaded audio asset. The bytes live elsewhere.
type AudioFile struct {
	URL        string  `json:"url"`
	FileID     string  `json:"file_id"`
	FileSize   int64   `json:"file_size"`
	Duration   float64 `json:"duration"`
	Format     string  `json:"format"`
	SampleRate *int    `json:"sample_rate,omitempty"`
	BitDepth   *int    `json:"bit_depth,omitempty"`
}

// TrackMetadata holds descriptive, user-supplied information.
type TrackMetadata struct {
	BPM          *float64          `json:"bpm,omitempty"`
	Key          string            `json:"key,omitempty"`
	Genre        string            `json:"genre,omitempty"`
	Instruments  []string          `json:"instruments,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// Track is one version of an audio piece within a project.
// Versions form a chain through PreviousVersionID; successors are found by reverse lookup.
type Track struct {
	ID                int64         `json:"id"`
	ProjectID         int64         `json:"project_id"`
	Title             string        `json:"title"`
	VersionNumber     int           `json:"version_number"`
	VersionName       string        `json:"version_name,omitempty"`
	AudioFile         AudioFile     `json:"audio_file"`
	WaveformData      string        `json:"waveform_data"`
	UploaderID        int64         `json:"uploader_id"`
	UploadedAt        time.Time     `json:"uploaded_at"`
	Metadata          TrackMetadata `json:"metadata"`
	PreviousVersionID *int64        `json:"previous_version_id,omitempty"`
}
