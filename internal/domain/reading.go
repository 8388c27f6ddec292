package domain

import "time"

// Tag keys attached to readings at ingestion.
const (
	TagDelivery    = "delivery"
	DeliveryLate   = "late"
	DeliveryOnTime = "on_time"
)

type Reading struct {
	ID           string            `json:"id" bson:"_id"`
	SubjectID    string            `json:"subjectId" bson:"subjectId"`
	SourceID     string            `json:"sourceId,omitempty" bson:"sourceId,omitempty"`
	HeartRate    int               `json:"heartRate" bson:"heartRate"`
	BloodOxygen  int               `json:"bloodOxygen" bson:"bloodOxygen"`
	Timestamp    time.Time         `json:"timestamp" bson:"timestamp"`
	ReceivedAt   time.Time         `json:"receivedAt" bson:"receivedAt"`
	ReadingCount int               `json:"readingCount,omitempty" bson:"readingCount,omitempty"`
	Tags         map[string]string `json:"tags,omitempty" bson:"tags,omitempty"`
}

type BulkReadings struct {
	Data []Reading `json:"data"`
}

// DeviceMessage is the payload a measuring device sends, over MQTT or HTTP.
type DeviceMessage struct {
	APIKey       string  `json:"api_key"`
	DeviceID     string  `json:"device_id"`
	HeartRate    float64 `json:"heart_rate"`
	SpO2         float64 `json:"spo2"`
	Timestamp    string  `json:"timestamp"`
	Valid        bool    `json:"valid"`
	ReadingCount int     `json:"reading_count,omitempty"`
	Error        string  `json:"error,omitempty"`
}

type BulkDeviceMessages struct {
	Data []DeviceMessage `json:"data"`
}

type Device struct {
	DeviceID  string `json:"deviceId" bson:"_id"`
	SubjectID string `json:"subjectId" bson:"subjectId"`
	APIKey    string `json:"-" bson:"apiKey"`
}

type Assignment struct {
	PhysicianID string `json:"physicianId" bson:"physicianId"`
	PatientID   string `json:"patientId" bson:"patientId"`
}

type ReadingConsumer interface {
	Process(data []Reading) error
}
