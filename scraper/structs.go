package scraper

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// TimestampLayout is the layout the portal API uses for every date and due date.
const TimestampLayout = "2006-01-02T15:04:05"

// Session is the authenticated context harvested from the portal after a
// successful login. It is immutable once created.
type Session struct {
	bearer       string
	studentID    string
	schoolID     string
	academicYear string
}

// NewSession builds a session from already known credentials.
func NewSession(bearer, studentID, schoolID, academicYear string) *Session {
	return &Session{
		bearer:       bearer,
		studentID:    studentID,
		schoolID:     schoolID,
		academicYear: academicYear,
	}
}

func (s *Session) Bearer() string       { return s.bearer }
func (s *Session) StudentID() string    { return s.studentID }
func (s *Session) SchoolID() string     { return s.schoolID }
func (s *Session) AcademicYear() string { return s.academicYear }

// authorization returns the value of the authorization header.
func (s *Session) authorization() string {
	return "Bearer " + s.bearer
}

// Timestamp is a portal timestamp without zone information.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		return errors.Wrapf(err, "invalid timestamp %q", raw)
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(TimestampLayout))
}

// Teacher is a single entry of a lesson's teacher list.
type Teacher struct {
	Role string
	Name string
}

// TeacherList keeps the teachers of a lesson in the order the portal sent them.
type TeacherList []Teacher

func (tl *TeacherList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*tl = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.Errorf("teacher list: expected object, got %v", tok)
	}
	var out TeacherList
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		var name string
		if err := dec.Decode(&name); err != nil {
			return errors.Wrap(err, "teacher list")
		}
		out = append(out, Teacher{Role: keyTok.(string), Name: name})
	}
	*tl = out
	return nil
}

// First returns the name of the first teacher, which is the only one shown.
func (tl TeacherList) First() string {
	if len(tl) == 0 {
		return ""
	}
	return tl[0].Name
}

// Lesson represents a single timetable entry. A nil Subject is a free period.
type Lesson struct {
	Subject   *string     `json:"subject_name"`
	Date      Timestamp   `json:"date"`
	StartTime string      `json:"start_time"`
	EndTime   string      `json:"end_time"`
	GroupCode string      `json:"group_code"`
	Teachers  TeacherList `json:"teacher_list"`
	Room      string      `json:"room_list"`
	IsPeriod  bool        `json:"is_period"`
}

// IsFree reports whether the lesson is a free period.
func (l Lesson) IsFree() bool {
	return l.Subject == nil
}

// SubjectName returns the subject or an empty string for free periods.
func (l Lesson) SubjectName() string {
	if l.Subject == nil {
		return ""
	}
	return *l.Subject
}

// Window combines the lesson date with its start and end times in loc.
func (l Lesson) Window(loc *time.Location) (start, end time.Time, err error) {
	start, err = clockOn(l.Date.Time, l.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrap(err, "start time")
	}
	end, err = clockOn(l.Date.Time, l.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrap(err, "end time")
	}
	return start, end, nil
}

// HomeworkTask is a pending homework item. Due keeps the raw due timestamp;
// DueLabel is only ever written by presentation code.
type HomeworkTask struct {
	Title    string    `json:"title"`
	Details  string    `json:"details"`
	Subject  string    `json:"subject_name"`
	Due      Timestamp `json:"due_date"`
	DueLabel string    `json:"-"`
}

// DueDay returns the calendar day the task is due on.
func (h HomeworkTask) DueDay() time.Time {
	y, m, d := h.Due.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
