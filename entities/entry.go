package entities

// Entry is the remote record produced from an uploaded recording.
// Transcript and Summary stay nil until the job pipeline fills both in a
// single write; their absence is the "still processing" signal.
type Entry struct {
	ID         uint32  `json:"id" gorm:"primaryKey;autoIncrement"`
	File       string  `json:"file" gorm:"not null"`
	Name       string  `json:"name" gorm:"not null"`
	Transcript *string `json:"transcript"`
	Summary    *string `json:"summary"`
}

func (Entry) TableName() string {
	return "entries"
}
