package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// fingerprintInput fixes the field order of the hashed representation.
// encoding/json sorts map keys, so Extra serializes deterministically too.
type fingerprintInput struct {
	SourceName    string         `json:"sourceName"`
	StartDate     string         `json:"startDate"`
	EndDate       *string        `json:"endDate"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Extra         map[string]any `json:"extra"`
	Image         *Image         `json:"image"`
	Location      string         `json:"location"`
	LocationCoord any            `json:"locationCoord"`
}

// Fingerprint returns the hex-encoded SHA-256 digest of the event's content
// fields. ID and any existing Fingerprint are not part of the digest.
func Fingerprint(e *Event) string {
	in := fingerprintInput{
		SourceName:    e.SourceName,
		StartDate:     formatMillis(e.StartDate),
		Title:         e.Title,
		Description:   e.Description,
		Extra:         e.Extra,
		Image:         e.Image,
		Location:      e.Location,
		LocationCoord: e.LocationCoord,
	}
	if e.EndDate != nil {
		s := formatMillis(*e.EndDate)
		in.EndDate = &s
	}

	data, err := json.Marshal(in)
	if err != nil {
		// Non-finite floats in Extra or LocationCoord are what json rejects.
		// fmt prints maps in sorted key order, so its rendering is stable.
		in.Extra = map[string]any{"$fmt": fmt.Sprint(e.Extra)}
		if e.LocationCoord != nil {
			in.LocationCoord = fmt.Sprint(*e.LocationCoord)
		}
		if data, err = json.Marshal(in); err != nil {
			panic(fmt.Sprintf("model: fingerprint input for %q not encodable: %v", e.Title, err))
		}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func formatMillis(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format("2006-01-02T15:04:05.000Z07:00")
}
