package solhealth

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// The backend payload is loosely typed: ids arrive as strings or numbers,
// list fields as arrays or comma separated strings, and names under more than
// one key. Everything is decoded into the wire types below and folded into
// the canonical types exactly once, here.

type matchPayload struct {
	Client     *clientPayload       `json:"client"`
	Therapists []therapistMatchWire `json:"therapists"`
}

type clientPayload struct {
	ID         flexString `json:"id"`
	ResponseID flexString `json:"response_id"`
	Email      string     `json:"email"`
	State      string     `json:"state"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
}

type therapistMatchWire struct {
	Therapist           therapistPayload `json:"therapist"`
	Score               float64          `json:"score"`
	MatchedSpecialities flexStrings      `json:"matched_diagnoses_specialities"`
}

type therapistPayload struct {
	ID                     flexString  `json:"id"`
	InternName             string      `json:"intern_name"`
	Name                   string      `json:"name"`
	Email                  string      `json:"email"`
	CalendarEmail          string      `json:"calendar_email"`
	Program                string      `json:"program"`
	Biography              string      `json:"biography"`
	Gender                 string      `json:"gender"`
	States                 flexStrings `json:"states"`
	Specialities           flexStrings `json:"specialities"`
	DiagnosesSpecialities  flexStrings `json:"diagnoses_specialities"`
	DiagnosesSpecialtiesV2 flexStrings `json:"diagnoses_specialties_array"`
	Orientation            flexStrings `json:"therapeutic_orientation"`
	InternalOrientation    flexStrings `json:"internal_therapeutic_orientation"`
	AvailableSlots         flexStrings `json:"available_slots"`
	Availability           flexStrings `json:"availability"`
	ImageLink              *string     `json:"image_link"`
	WelcomeVideoLink       string      `json:"welcome_video_link"`
	GreetingsVideoLink     string      `json:"greetings_video_link"`
	AcceptingNewClients    *bool       `json:"accepting_new_clients"`
}

func normalizeMatches(p matchPayload) *MatchResult {
	result := &MatchResult{
		Client:     normalizeClient(p.Client),
		Therapists: make([]TherapistMatch, 0, len(p.Therapists)),
	}
	for _, m := range p.Therapists {
		result.Therapists = append(result.Therapists, TherapistMatch{
			Therapist:           normalizeTherapist(m.Therapist),
			Score:               m.Score,
			MatchedSpecialities: []string(m.MatchedSpecialities),
		})
	}
	return result
}

func normalizeClient(p *clientPayload) *ClientRecord {
	if p == nil {
		return nil
	}
	return &ClientRecord{
		ID:         strings.TrimSpace(string(p.ID)),
		ResponseID: strings.TrimSpace(string(p.ResponseID)),
		Email:      strings.TrimSpace(p.Email),
		State:      strings.ToUpper(strings.TrimSpace(p.State)),
		FirstName:  strings.TrimSpace(p.FirstName),
		LastName:   strings.TrimSpace(p.LastName),
	}
}

func normalizeTherapist(p therapistPayload) Therapist {
	t := Therapist{
		ID:                  strings.TrimSpace(string(p.ID)),
		Name:                firstNonEmpty(p.InternName, p.Name),
		Email:               strings.TrimSpace(p.Email),
		CalendarEmail:       strings.TrimSpace(p.CalendarEmail),
		Program:             strings.TrimSpace(p.Program),
		Biography:           strings.TrimSpace(p.Biography),
		Gender:              strings.TrimSpace(p.Gender),
		States:              []string(p.States),
		Specialities:        firstNonEmptyList(p.Specialities, p.DiagnosesSpecialities, p.DiagnosesSpecialtiesV2),
		Orientations:        firstNonEmptyList(p.Orientation, p.InternalOrientation),
		AvailableSlots:      firstNonEmptyList(p.AvailableSlots, p.Availability),
		WelcomeVideoLink:    strings.TrimSpace(p.WelcomeVideoLink),
		GreetingsVideoLink:  strings.TrimSpace(p.GreetingsVideoLink),
		AcceptingNewClients: p.AcceptingNewClients,
	}
	if p.ImageLink != nil {
		t.ImageLink = strings.TrimSpace(*p.ImageLink)
	}
	return t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyList(lists ...flexStrings) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return []string(l)
		}
	}
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexStrings accepts a JSON array of strings or a single comma separated
// string. Blank entries are dropped.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	var raw []string
	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		for _, item := range items {
			var s flexString
			if err := s.UnmarshalJSON(item); err != nil {
				continue
			}
			raw = append(raw, string(s))
		}
	} else {
		var s flexString
		if err := s.UnmarshalJSON(data); err != nil {
			return err
		}
		raw = strings.Split(string(s), ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		*f = nil
		return nil
	}
	*f = out
	return nil
}

// errorMessage extracts a server-provided error message from a response body.
// Backends answer with {"error": ...}, {"message": ...}, {"Message": ...},
// {"detail": ...} or a bare JSON string.
func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"error", "message", "Message", "detail"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	}
	return ""
}

func itoa(n int) string { return strconv.Itoa(n) }
