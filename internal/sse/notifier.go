package sse

import (
	"time"

	"github.com/sparesmarket/spares_api/internal/models"
)

// HubNotifier forwards export job changes to the SSE Hub.
type HubNotifier struct {
	hub *Hub
	now func() time.Time
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub, now: time.Now}
}

func (n *HubNotifier) NotifyJobChanged(job *models.ExportJob) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(jobToEvent(job, n.now()))
}

func jobToEvent(job *models.ExportJob, at time.Time) *JobEvent {
	return &JobEvent{
		Event:        eventFor(job.Status),
		JobID:        job.ID,
		DataType:     string(job.DataType),
		Format:       string(job.Format),
		Status:       string(job.Status),
		RecordCount:  job.RecordCount,
		FileName:     job.FileName,
		ErrorMessage: job.ErrorMessage,
		Timestamp:    at,
	}
}

func eventFor(status models.JobStatus) EventType {
	switch status {
	case models.JobStatusProcessing:
		return EventJobStarted
	case models.JobStatusCompleted:
		return EventJobCompleted
	case models.JobStatusFailed:
		return EventJobFailed
	default:
		return EventJobCreated
	}
}
