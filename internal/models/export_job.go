package models

import "time"

// JobStatus enumerates export job states.
// pending -> processing -> completed | failed; terminal states never change.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// DataType is the kind of business data an exchange covers.
type DataType string

const (
	DataTypeCatalog    DataType = "catalog"
	DataTypeOffers     DataType = "offers"
	DataTypeOrders     DataType = "orders"
	DataTypeClassifier DataType = "classifier"
)

// DataTypes lists every exportable data type.
var DataTypes = []DataType{DataTypeCatalog, DataTypeOffers, DataTypeOrders, DataTypeClassifier}

// IsValid reports whether d is a known data type.
func (d DataType) IsValid() bool {
	switch d {
	case DataTypeCatalog, DataTypeOffers, DataTypeOrders, DataTypeClassifier:
		return true
	}
	return false
}

// Format is a serialization format for exported payloads.
type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatCSV  Format = "csv"
)

// IsValid reports whether f is a known format.
func (f Format) IsValid() bool {
	switch f {
	case FormatJSON, FormatXML, FormatCSV:
		return true
	}
	return false
}

// ContentType returns the MIME type used when storing or serving f.
func (f Format) ContentType() string {
	switch f {
	case FormatXML:
		return "application/xml; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/json; charset=utf-8"
	}
}

// ExportJobKind is the only job kind produced today.
const ExportJobKind = "export"

// ExportJob is an asynchronous export request and its outcome.
type ExportJob struct {
	ID           string     `db:"id" json:"id"`
	Kind         string     `db:"kind" json:"kind"`
	DataType     DataType   `db:"data_type" json:"dataType"`
	Format       Format     `db:"format" json:"format"`
	Status       JobStatus  `db:"status" json:"status"`
	PayloadRef   *string    `db:"payload_ref" json:"payloadRef,omitempty"`
	FileName     *string    `db:"file_name" json:"fileName,omitempty"`
	RecordCount  int        `db:"record_count" json:"recordCount"`
	ErrorMessage *string    `db:"error_message" json:"errorMessage,omitempty"`
	WorkerID     *string    `db:"worker_id" json:"workerId,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
	StartedAt    *time.Time `db:"started_at" json:"startedAt,omitempty"`
	FinishedAt   *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
}
