package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// subjectRenames maps portal subject names to the names shown to the user.
var subjectRenames = map[string]string{
	"Rg":           "Form",
	"Computer Sci": "Computer Science",
}

// NormalizeSubject rewrites the portal's abbreviated subject names.
func NormalizeSubject(name string) string {
	if renamed, ok := subjectRenames[name]; ok {
		return renamed
	}
	return name
}

type timetableResponse struct {
	Lessons []Lesson `json:"student_timetable"`
}

type homeworkResponse struct {
	StudentHomework struct {
		Homework []HomeworkTask `json:"homework"`
	} `json:"student_homework"`
}

// GetTimetable fetches the lessons between the bounds of r. A nil range means
// the current week.
func (c *Client) GetTimetable(ctx context.Context, s *Session, r *Range) ([]Lesson, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	week := CurrentWeek(c.now())
	if r != nil {
		week = *r
	}
	from, to := week.Bounds()

	c.logger().Info("fetching timetable", "from", from, "to", to)
	path := fmt.Sprintf("/timetable/student/academic-years/%d/school-id/%s/user-type/1/student-id/%s/from-date/%s/to-date/%s",
		c.now().Year(), url.PathEscape(s.SchoolID()), url.PathEscape(s.StudentID()), url.PathEscape(from), url.PathEscape(to))

	var resp timetableResponse
	if err := c.getJSON(ctx, s, path, url.Values{"caching": {"true"}}, &resp); err != nil {
		return nil, err
	}

	lessons := resp.Lessons
	if lessons == nil {
		lessons = []Lesson{}
	}
	for i := range lessons {
		if lessons[i].Subject != nil {
			name := NormalizeSubject(*lessons[i].Subject)
			lessons[i].Subject = &name
		}
	}
	return lessons, nil
}

// GetAttendance returns the attendance payload as the portal sent it.
func (c *Client) GetAttendance(ctx context.Context, s *Session) ([]byte, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	c.logger().Info("fetching attendance")
	path := fmt.Sprintf("/attendance/session/academic-years/%d/school-id/%s/user-type/1/year-groups/12/student-id/%s",
		c.now().Year(), url.PathEscape(s.SchoolID()), url.PathEscape(s.StudentID()))
	return c.get(ctx, s, path, url.Values{"caching": {"false"}, "includeSettings": {"true"}})
}

// GetGrades returns the grades payload as the portal sent it.
func (c *Client) GetGrades(ctx context.Context, s *Session) ([]byte, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	c.logger().Info("fetching grades", "academic_year", s.AcademicYear())
	path := fmt.Sprintf("/attainment/student-grades/academic-years/%s/school-id/%s/user-type/1/year-group/12/student-id/%s",
		url.PathEscape(s.AcademicYear()), url.PathEscape(s.SchoolID()), url.PathEscape(s.StudentID()))
	return c.get(ctx, s, path, url.Values{"caching": {"false"}, "includeSettings": {"false"}})
}

// GetHomework fetches pending homework and keeps the tasks due on or after
// the Sunday before the current week.
func (c *Client) GetHomework(ctx context.Context, s *Session) ([]HomeworkTask, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	c.logger().Info("fetching homework", "academic_year", s.AcademicYear())
	path := fmt.Sprintf("/homework/student/academic-years/%s/school-id/%s/user-type/1/student-id/%s",
		url.PathEscape(s.AcademicYear()), url.PathEscape(s.SchoolID()), url.PathEscape(s.StudentID()))

	var resp homeworkResponse
	if err := c.getJSON(ctx, s, path, url.Values{"caching": {"true"}, "includeSettings": {"true"}}, &resp); err != nil {
		return nil, err
	}
	return FilterHomework(resp.StudentHomework.Homework, c.now()), nil
}

// FilterHomework drops tasks due before HomeworkCutoff(now). Due timestamps
// are read as wall clock times in now's location.
func FilterHomework(tasks []HomeworkTask, now time.Time) []HomeworkTask {
	cutoff := HomeworkCutoff(now)
	kept := make([]HomeworkTask, 0, len(tasks))
	for _, task := range tasks {
		y, m, d := task.Due.Date()
		due := time.Date(y, m, d, task.Due.Hour(), task.Due.Minute(), task.Due.Second(), 0, cutoff.Location())
		if !due.Before(cutoff) {
			kept = append(kept, task)
		}
	}
	return kept
}

func (c *Client) getJSON(ctx context.Context, s *Session, path string, query url.Values, v any) error {
	data, err := c.get(ctx, s, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ParseError{What: "response from " + path, Err: err}
	}
	return nil
}

// get issues an authenticated GET against the API. Non-success statuses are
// returned as *RequestError without retrying.
func (c *Client) get(ctx context.Context, s *Session, path string, query url.Values) ([]byte, error) {
	endpoint := c.APIBase + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating api request")
	}
	req.Header.Set("Authorization", s.authorization())
	req.Header.Set("Origin", c.Origin)
	req.Header.Set("Referer", c.Origin+"/")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	c.logger().Debug("api response", "path", path, "status", strconv.Itoa(resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{StatusCode: resp.StatusCode, Endpoint: path}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}
