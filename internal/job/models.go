package job

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type Status string

const (
	JobPending   Status = "pending"
	JobRunning   Status = "running"
	JobPartial   Status = "partial"
	JobCompleted Status = "completed"
	JobFailed    Status = "failed"
)

// Terminal reports whether a job status can still change.
func (s Status) Terminal() bool {
	return s == JobPartial || s == JobCompleted || s == JobFailed
}

type RowStatus string

const (
	RowPending RowStatus = "pending"
	// RowClaimed marks a row a tick has taken but not settled. Claims expire:
	// a claim older than the claim TTL is released back to pending so a
	// crashed tick cannot strand a row.
	RowClaimed RowStatus = "claimed"
	RowSuccess RowStatus = "success"
	RowFailed  RowStatus = "failed"
)

// Job is one batch covering an ordered set of input rows destined for one
// target site. Status is a cached projection of the rows' statuses; the
// reconciliation in status.go is the source of truth.
type Job struct {
	ID     string `gorm:"primaryKey;size:26" json:"job_id"` // ULID length
	SiteID string `gorm:"size:36;index;not null" json:"site_id"`

	Status        Status `gorm:"type:varchar(16);index;not null" json:"status"`
	TotalRows     int64  `gorm:"not null" json:"total_rows"`
	ProcessedRows int64  `gorm:"not null" json:"processed_rows"`

	// Instructions is the generation directive applied to every row.
	// Immutable after creation.
	Instructions string `gorm:"type:text" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }

// Row is one unit of work: one input record producing at most one published
// post. Status moves pending -> claimed -> {success, failed}, each row
// settling exactly once.
type Row struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID   string `gorm:"size:26;index;not null" json:"job_id"`
	Ordinal int    `gorm:"not null" json:"ordinal"`

	Status    RowStatus  `gorm:"type:varchar(16);index;not null" json:"status"`
	ClaimedAt *time.Time `json:"-"`

	ErrorCode    string `gorm:"size:64" json:"error_code,omitempty"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	TextModelID  string `gorm:"size:64" json:"text_model_id"`
	ImageModelID string `gorm:"size:64" json:"image_model_id,omitempty"` // empty means text-only row

	PostID  *int64 `json:"post_id,omitempty"`
	MediaID *int64 `json:"media_id,omitempty"`

	// Payload is the original input record in its canonical JSON form.
	Payload string `gorm:"type:text;not null" json:"-"`
}

func (Row) TableName() string { return "job_rows" }

func NewJobID() string {
	return ulid.Make().String()
}
