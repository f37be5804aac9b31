package dto

import "github.com/google/uuid"

// JobMessage is handed to the pipeline for every accepted upload,
// either in process or over the queue.
type JobMessage struct {
	JobId      uuid.UUID `json:"jobId"`
	EntryId    uint32    `json:"entryId"`
	ObjectPath string    `json:"objectPath"`
}

// UploadSelection is the device-side upload trigger: a target endpoint
// plus the ids of the recordings the user picked.
type UploadSelection struct {
	Url   string   `json:"url"`
	Files []uint32 `json:"files"`
}

// NoteResponse is one row of the listing surface. Nil transcript and
// summary mean the entry is still being processed.
type NoteResponse struct {
	Name       string  `json:"name"`
	Transcript *string `json:"transcript"`
	Summary    *string `json:"summary"`
}
