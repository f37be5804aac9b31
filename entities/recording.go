package entities

// Recording is a locally captured audio unit. Uploaded only ever moves
// false to true, after the remote endpoint acknowledged the whole batch.
// The JSON shape doubles as the "file" event payload.
type Recording struct {
	ID       uint32 `json:"id"`
	File     string `json:"file"`
	Name     string `json:"name"`
	Uploaded bool   `json:"uploaded"`
}
