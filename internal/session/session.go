package session

import "time"

// DialogKind names a multi-step registration flow. A chat with no stored
// session is idle.
type DialogKind string

const (
	DialogIdle            DialogKind = "idle"
	DialogPassenger       DialogKind = "passenger_registration"
	DialogPassengerLegacy DialogKind = "passenger_registration_legacy"
	DialogVolunteer       DialogKind = "volunteer_registration"
	DialogVolunteerLegacy DialogKind = "volunteer_registration_legacy"
	DialogDashboardUser   DialogKind = "dashboard_user_registration"
)

// Step is the field the dialog is currently waiting on.
type Step string

const (
	StepFullName  Step = "full_name"
	StepLegalName Step = "legal_name"
	StepCity      Step = "city"
	StepPhone     Step = "phone"
	StepUsername  Step = "username"
)

// Field is one collected answer. Fields keep insertion order so a persisted
// session can be replayed in the order the user answered.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Fields []Field

func (f Fields) Get(name string) (string, bool) {
	for _, item := range f {
		if item.Name == name {
			return item.Value, true
		}
	}
	return "", false
}

func (f *Fields) Set(name, value string) {
	for i, item := range *f {
		if item.Name == name {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Name: name, Value: value})
}

// Session is the in-progress state of one dialog for one chat. At most one
// session exists per chat; starting a new dialog overwrites any stale one.
type Session struct {
	ChatID    int64      `json:"chat_id"`
	Dialog    DialogKind `json:"dialog"`
	Step      Step       `json:"step"`
	Fields    Fields     `json:"fields"`
	StartedAt time.Time  `json:"started_at"`
}

func New(chatID int64, dialog DialogKind, step Step) Session {
	return Session{
		ChatID:    chatID,
		Dialog:    dialog,
		Step:      step,
		StartedAt: time.Now().UTC(),
	}
}
