// Package solhealth contains the REST client for the match and scheduling
// backend and the canonical types the rest of the gateway works with.
package solhealth

import (
	"encoding/json"
	"strings"
)

// ClientRecord is the intake client tied to a survey response. It is created
// by the intake pipeline and is read-only here.
type ClientRecord struct {
	ID         string `json:"id,omitempty"`
	ResponseID string `json:"response_id,omitempty"`
	Email      string `json:"email,omitempty"`
	State      string `json:"state,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

// BookingID is the identifier appointments are booked under: the response id
// when present, otherwise the generic client id.
func (c *ClientRecord) BookingID() string {
	if c == nil {
		return ""
	}
	if id := strings.TrimSpace(c.ResponseID); id != "" {
		return id
	}
	return strings.TrimSpace(c.ID)
}

// Therapist is the canonical therapist profile. Alternate upstream field
// names are folded in by normalizeTherapist.
type Therapist struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Email               string   `json:"email,omitempty"`
	CalendarEmail       string   `json:"calendar_email,omitempty"`
	Program             string   `json:"program,omitempty"`
	Biography           string   `json:"biography,omitempty"`
	Gender              string   `json:"gender,omitempty"`
	States              []string `json:"states,omitempty"`
	Specialities        []string `json:"specialities,omitempty"`
	Orientations        []string `json:"therapeutic_orientation,omitempty"`
	AvailableSlots      []string `json:"available_slots,omitempty"`
	ImageLink           string   `json:"image_link,omitempty"`
	WelcomeVideoLink    string   `json:"welcome_video_link,omitempty"`
	GreetingsVideoLink  string   `json:"greetings_video_link,omitempty"`
	AcceptingNewClients *bool    `json:"accepting_new_clients,omitempty"`
}

// BookingEmail is the address appointments are created against. The calendar
// email wins over the general one.
func (t Therapist) BookingEmail() string {
	if e := strings.TrimSpace(t.CalendarEmail); e != "" {
		return e
	}
	return strings.TrimSpace(t.Email)
}

// TherapistMatch pairs a therapist with ranking metadata for one client.
type TherapistMatch struct {
	Therapist           Therapist `json:"therapist"`
	Score               float64   `json:"score"`
	MatchedSpecialities []string  `json:"matched_diagnoses_specialities,omitempty"`
}

// MatchResult is what a match fetch yields: the client (nil when the backend
// has none) and candidates in ranked order.
type MatchResult struct {
	Client     *ClientRecord    `json:"client"`
	Therapists []TherapistMatch `json:"therapists"`
}

// FindTherapist returns the match whose therapist id equals id.
func (m *MatchResult) FindTherapist(id string) (TherapistMatch, bool) {
	if m == nil {
		return TherapistMatch{}, false
	}
	id = strings.TrimSpace(id)
	for _, match := range m.Therapists {
		if match.Therapist.ID == id {
			return match, true
		}
	}
	return TherapistMatch{}, false
}

// MatchOptions narrows a match fetch.
type MatchOptions struct {
	Limit               int
	ExcludeTherapistIDs []string
}

// AppointmentRequest is the payload for creating an appointment. Datetime is a
// UTC ISO-8601 instant.
type AppointmentRequest struct {
	ClientResponseID            string
	TherapistEmail              string
	TherapistName               string
	Datetime                    string
	SendClientEmailNotification *bool
	ReminderType                string
	Status                      string
	// IdempotencyKey is sent as a header so a replayed create can be
	// recognized by the backend.
	IdempotencyKey string
}

type appointmentBody struct {
	ClientResponseID            string `json:"client_response_id"`
	TherapistEmail              string `json:"therapist_email"`
	TherapistName               string `json:"therapist_name"`
	Datetime                    string `json:"datetime"`
	SendClientEmailNotification bool   `json:"send_client_email_notification"`
	ReminderType                string `json:"reminder_type"`
	Status                      string `json:"status"`
}

func (r AppointmentRequest) body() appointmentBody {
	notify := true
	if r.SendClientEmailNotification != nil {
		notify = *r.SendClientEmailNotification
	}
	reminder := r.ReminderType
	if reminder == "" {
		reminder = "email"
	}
	status := r.Status
	if status == "" {
		status = "scheduled"
	}
	return appointmentBody{
		ClientResponseID:            r.ClientResponseID,
		TherapistEmail:              r.TherapistEmail,
		TherapistName:               r.TherapistName,
		Datetime:                    r.Datetime,
		SendClientEmailNotification: notify,
		ReminderType:                reminder,
		Status:                      status,
	}
}

// Appointment is the scheduling system's appointment object. It is opaque to
// the gateway and forwarded verbatim to the sync endpoint.
type Appointment map[string]json.RawMessage

// ID returns the scheduling system's appointment id, if any.
func (a Appointment) ID() string { return a.stringField("Id") }

// StartDateISO returns the appointment start as reported by the scheduler.
func (a Appointment) StartDateISO() string { return a.stringField("StartDateIso") }

// Status returns the scheduler's status string.
func (a Appointment) Status() string { return a.stringField("Status") }

func (a Appointment) stringField(key string) string {
	raw, ok := a[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// withState copies the appointment and injects the client's state. An empty
// state drops the key, matching how the field is omitted when unknown.
func (a Appointment) withState(state string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(a)+1)
	for k, v := range a {
		out[k] = v
	}
	state = strings.TrimSpace(state)
	if state == "" {
		delete(out, "State")
		return out, nil
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	out["State"] = raw
	return out, nil
}

// SlotsQuery selects a therapist's open slots.
type SlotsQuery struct {
	Email      string
	State      string
	ResponseID string
}

// Confirmation is the summary shown on the booking confirmation view.
type Confirmation struct {
	Client struct {
		ID        string `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		State     string `json:"state,omitempty"`
	} `json:"client"`
	Therapist struct {
		ID           string `json:"id"`
		Name         string `json:"intern_name"`
		Email        string `json:"email"`
		ImageLink    string `json:"image_link,omitempty"`
		WelcomeVideo string `json:"welcome_video,omitempty"`
		Program      string `json:"program,omitempty"`
	} `json:"therapist"`
	Appointment struct {
		Datetime        string `json:"datetime"`
		Status          string `json:"status"`
		DurationMinutes int    `json:"duration_minutes"`
		PaymentType     string `json:"payment_type"`
	} `json:"appointment"`
}
