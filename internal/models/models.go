// Package models defines the entities the scheduler reasons about: OOIs,
// plugins, organisations, and the two task kinds it can produce.
package models

import "time"

// ScanProfile is the intrusiveness budget attached to an OOI. Reference
// records what set the level, so the admin surface can explain a scheduling
// decision instead of just showing a bare integer.
type ScanProfile struct {
	Level     int    `json:"level"`
	Reference string `json:"reference,omitempty"`
}

// OOI (Object Of Interest) is a discovered entity under observation. The
// scheduler treats it as immutable for the duration of one populate tick.
type OOI struct {
	PrimaryKey  string      `json:"primary_key"`
	ObjectType  string      `json:"object_type"`
	ScanProfile ScanProfile `json:"scan_profile"`
	ModifiedAt  time.Time   `json:"modified_at"`
}

// PluginType distinguishes boefjes (collectors) from normalizers (processors).
type PluginType string

const (
	PluginTypeBoefje     PluginType = "boefje"
	PluginTypeNormalizer PluginType = "normalizer"
)

// Plugin is a capability descriptor owned by the catalogue service.
type Plugin struct {
	ID        string     `json:"id"`
	Type      PluginType `json:"type"`
	Enabled   bool       `json:"enabled"`
	ScanLevel int        `json:"scan_level"`
	// Consumes holds the single OOI type for a boefje, or the set of raw-data
	// mime-types for a normalizer.
	Consumes []string `json:"consumes"`
}

// ConsumesOOIType reports whether a boefje plugin consumes the given OOI type.
func (p Plugin) ConsumesOOIType(ooiType string) bool {
	for _, c := range p.Consumes {
		if c == ooiType {
			return true
		}
	}
	return false
}

// ConsumesMimeType reports whether a normalizer plugin consumes one of the
// given raw-data mime-types.
func (p Plugin) ConsumesMimeType(mimeTypes []string) bool {
	for _, want := range mimeTypes {
		for _, c := range p.Consumes {
			if c == want {
				return true
			}
		}
	}
	return false
}

// Organisation is a tenancy boundary: the catalogue's unit of isolation.
type Organisation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BoefjeTask is the work unit handed to the worker fabric for a boefje run.
type BoefjeTask struct {
	ID           string `json:"id"`
	Boefje       Plugin `json:"boefje"`
	InputOOI     string `json:"input_ooi"`
	Organization string `json:"organization"`
	// Hint carries the input OOI's ScanProfile.Reference, so the admin surface
	// can explain why this task was scheduled without a separate lookup.
	Hint string `json:"hint,omitempty"`
}

// Identity returns the dedup key for this task: (boefje id, input ooi, org).
func (t BoefjeTask) Identity() string {
	return "boefje:" + t.Boefje.ID + ":" + t.InputOOI + ":" + t.Organization
}

// RawDataRef references a stored raw-data blob plus the mime-types it was
// tagged with when produced.
type RawDataRef struct {
	ID        string   `json:"id"`
	MimeTypes []string `json:"mime_types"`
	BoefjeID  string   `json:"boefje_id"`
	InputOOI  string   `json:"input_ooi"`
}

// NormalizerTask is the work unit handed to the worker fabric for a
// normalizer run.
type NormalizerTask struct {
	ID           string     `json:"id"`
	Normalizer   Plugin     `json:"normalizer"`
	RawData      RawDataRef `json:"raw_data"`
	Organization string     `json:"organization"`
}

// Identity returns the dedup key for this task: (normalizer id, raw data id).
func (t NormalizerTask) Identity() string {
	return "normalizer:" + t.Normalizer.ID + ":" + t.RawData.ID
}

// BoefjeMeta is a historical run record for a (boefje, input ooi) pair,
// fetched from the raw-data service to enforce the grace-period gate.
type BoefjeMeta struct {
	ID        string     `json:"id"`
	BoefjeID  string     `json:"boefje_id"`
	InputOOI  string     `json:"input_ooi"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// TaskStatus is an in-memory-only annotation used by the admin surface; it
// is never persisted and is lost on restart.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusDispatched TaskStatus = "dispatched"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)
