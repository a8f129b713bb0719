package enums

import "fmt"

// QueueName is one of the fixed named queues the job broker serves.
type QueueName string

const (
	QueueReceiptGeneration  QueueName = "receipt-generation"
	QueueCloudStorageUpload QueueName = "cloud-storage-upload"
	QueueEmailDelivery      QueueName = "email-delivery"
	QueueRecoveryScan       QueueName = "recovery-scan"
)

var validQueueNames = []QueueName{
	QueueReceiptGeneration,
	QueueCloudStorageUpload,
	QueueEmailDelivery,
	QueueRecoveryScan,
}

// String implements fmt.Stringer.
func (q QueueName) String() string {
	return string(q)
}

// IsValid reports whether the value matches a canonical queue name.
func (q QueueName) IsValid() bool {
	for _, candidate := range validQueueNames {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseQueueName converts raw input into a QueueName.
func ParseQueueName(value string) (QueueName, error) {
	for _, candidate := range validQueueNames {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid queue name %q", value)
}

// JobStatus tracks a JobLog row across its execution lifecycle.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

var validJobStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
}

// String implements fmt.Stringer.
func (s JobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a canonical job status.
func (s JobStatus) IsValid() bool {
	for _, candidate := range validJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseJobStatus converts raw input into a JobStatus.
func ParseJobStatus(value string) (JobStatus, error) {
	for _, candidate := range validJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job status %q", value)
}
