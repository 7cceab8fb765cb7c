package googlecalendar

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	pkgerrors "github.com/pkg/errors"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"g4s-calendar/reconcile"
)

// eventTimeLayout keeps the numeric offset even for UTC ("+00:00").
const eventTimeLayout = "2006-01-02T15:04:05-07:00"

// Service adapts the Google Calendar API to reconcile.CalendarService.
type Service struct {
	events     *calendar.EventsService
	calendarID string
	log        hclog.Logger
}

var _ reconcile.CalendarService = (*Service)(nil)

// NewService builds a calendar client on top of an authorized HTTP client.
func NewService(ctx context.Context, client *http.Client, calendarID string, logger hclog.Logger, opts ...option.ClientOption) (*Service, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "unable to retrieve Calendar client")
	}
	logger.Named("calendar").Debug("google calendar client ready", "calendar_id", calendarID)
	return &Service{events: srv.Events, calendarID: calendarID, log: logger.Named("calendar")}, nil
}

func (s *Service) ListWindow(ctx context.Context, timeMin, timeMax time.Time) ([]reconcile.Event, error) {
	var out []reconcile.Event
	pageToken := ""
	for {
		call := s.events.List(s.calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		events, err := call.Do()
		if err != nil {
			return nil, pkgerrors.Wrap(err, "error fetching events from Google Calendar")
		}
		out = appendEvents(out, events.Items)

		pageToken = events.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return out, nil
}

func (s *Service) ListUpcoming(ctx context.Context, from time.Time, max int) ([]reconcile.Event, error) {
	events, err := s.events.List(s.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		MaxResults(int64(max)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "error fetching upcoming events from Google Calendar")
	}
	return appendEvents(nil, events.Items), nil
}

// ListAll fetches a single page of at most max events.
func (s *Service) ListAll(ctx context.Context, max int) ([]reconcile.Event, error) {
	events, err := s.events.List(s.calendarID).MaxResults(int64(max)).Context(ctx).Do()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "error fetching events from Google Calendar")
	}
	s.log.Debug("fetched events", "count", len(events.Items))
	return appendEvents(nil, events.Items), nil
}

func (s *Service) Insert(ctx context.Context, c reconcile.Candidate) (reconcile.Event, error) {
	created, err := s.events.Insert(s.calendarID, toGoogle(c)).Context(ctx).Do()
	if err != nil {
		return reconcile.Event{}, pkgerrors.Wrap(err, "error inserting event into Google Calendar")
	}
	return fromGoogle(created), nil
}

// Delete removes an event. Events that are already gone are not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.events.Delete(s.calendarID, id).Context(ctx).Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusGone {
		s.log.Debug("event already deleted", "id", id)
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(err, "error deleting event from Google Calendar")
	}
	return nil
}

func toGoogle(c reconcile.Candidate) *calendar.Event {
	e := &calendar.Event{
		Summary:     c.Summary,
		Description: c.Description,
		ColorId:     c.ColorID,
	}
	if c.AllDay {
		e.Start = &calendar.EventDateTime{Date: c.Start.Format(time.DateOnly)}
		e.End = &calendar.EventDateTime{Date: c.End.Format(time.DateOnly)}
		return e
	}
	e.Start = &calendar.EventDateTime{DateTime: c.Start.Format(eventTimeLayout), TimeZone: c.TimeZone}
	e.End = &calendar.EventDateTime{DateTime: c.End.Format(eventTimeLayout), TimeZone: c.TimeZone}
	return e
}

func appendEvents(out []reconcile.Event, items []*calendar.Event) []reconcile.Event {
	for _, item := range items {
		if item == nil || item.Status == "cancelled" {
			continue
		}
		out = append(out, fromGoogle(item))
	}
	return out
}

func fromGoogle(e *calendar.Event) reconcile.Event {
	return reconcile.Event{
		ID:      e.Id,
		Summary: e.Summary,
		Start:   fromGoogleTime(e.Start),
		End:     fromGoogleTime(e.End),
	}
}

func fromGoogleTime(t *calendar.EventDateTime) *reconcile.EventTime {
	if t == nil {
		return nil
	}
	return &reconcile.EventTime{Date: t.Date, DateTime: t.DateTime, TimeZone: t.TimeZone}
}
