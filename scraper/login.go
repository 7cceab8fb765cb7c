package scraper

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

const (
	DefaultLoginURL = "https://www.go4schools.com/sso/account/login?site=Student"
	DefaultAPIBase  = "https://api.go4schools.com/web/stars/v1"
	DefaultOrigin   = "https://www.go4schools.com"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Client talks to the portal: it logs in and retrieves timetable data.
type Client struct {
	LoginURL  string
	APIBase   string
	Origin    string
	Extractor TokenExtractor
	HTTP      *http.Client
	Now       func() time.Time

	log hclog.Logger
}

// NewClient returns a client pointed at the public portal.
func NewClient(logger hclog.Logger) *Client {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Client{
		LoginURL:  DefaultLoginURL,
		APIBase:   DefaultAPIBase,
		Origin:    DefaultOrigin,
		Extractor: DefaultExtractor(),
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		Now:       time.Now,
		log:       logger.Named("g4s"),
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) logger() hclog.Logger {
	if c.log == nil {
		return hclog.NewNullLogger()
	}
	return c.log
}

func (c *Client) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Client) extractor() TokenExtractor {
	if c.Extractor == nil {
		return DefaultExtractor()
	}
	return c.Extractor
}

// Login performs the two-step login exchange and harvests a Session.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	body, ok, err := c.exchange(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &AuthenticationError{Username: username}
	}

	schoolID, err := c.extractor().Extract(body, MarkerSchoolID)
	if err != nil {
		return nil, err
	}
	studentID, err := c.extractor().Extract(body, MarkerStudentID)
	if err != nil {
		return nil, err
	}
	bearer, err := c.extractor().Extract(body, MarkerAccessToken)
	if err != nil {
		return nil, err
	}

	s := NewSession(bearer, studentID, strings.TrimSpace(schoolID), AcademicYear(c.now()))
	c.logger().Info("logged in", "username", username, "student_id", s.StudentID(), "school_id", s.SchoolID())
	return s, nil
}

// Verify runs the same exchange as Login but only reports whether the
// credentials were accepted.
func (c *Client) Verify(ctx context.Context, username, password string) (bool, error) {
	_, ok, err := c.exchange(ctx, username, password)
	return ok, err
}

// exchange fetches the login form, posts the credentials and returns the body
// of the page the portal lands on and whether the login was accepted.
func (c *Client) exchange(ctx context.Context, username, password string) (string, bool, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return "", false, errors.Wrap(err, "cookie jar")
	}
	base := c.httpClient()
	session := &http.Client{
		Jar:       jar,
		Transport: base.Transport,
		Timeout:   base.Timeout,
	}

	// Step 1: fetch the login page to obtain cookies and the anti-forgery token.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.LoginURL, nil)
	if err != nil {
		return "", false, errors.Wrap(err, "creating login page request")
	}
	browserHeaders(req, c.LoginURL)

	page, _, err := c.fetch(session, req)
	if err != nil {
		return "", false, err
	}
	token, err := c.verificationToken(page)
	if err != nil {
		return "", false, err
	}

	// Step 2: post the credentials.
	form := url.Values{
		"username":             {username},
		"password":             {password},
		verificationTokenField: {token},
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.LoginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", false, errors.Wrap(err, "creating login request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	browserHeaders(req, c.LoginURL)

	body, landed, err := c.fetch(session, req)
	if err != nil {
		return "", false, err
	}

	if strings.Contains(landed.String(), "login") {
		c.logger().Warn("login unsuccessful", "username", username)
		return body, false, nil
	}
	c.logger().Debug("login accepted", "landed", landed.Path)
	return body, true, nil
}

// verificationToken locates the anti-forgery token with the configured
// extractor, falling back to reading the hidden form input.
func (c *Client) verificationToken(page string) (string, error) {
	if _, isForm := c.extractor().(FormExtractor); isForm {
		return c.extractor().Extract(page, verificationTokenField)
	}
	token, err := c.extractor().Extract(page, MarkerVerificationToken)
	if err == nil {
		return token, nil
	}
	if token, ferr := (FormExtractor{}).Extract(page, verificationTokenField); ferr == nil {
		c.logger().Debug("verification token found via form input")
		return token, nil
	}
	return "", err
}

// fetch performs req and returns the body along with the final URL after redirects.
func (c *Client) fetch(session *http.Client, req *http.Request) (string, *url.URL, error) {
	resp, err := session.Do(req)
	if err != nil {
		return "", nil, errors.Wrapf(err, "%s %s", req.Method, req.URL.Redacted())
	}
	defer resp.Body.Close()

	c.logger().Debug("portal response", "method", req.Method, "status", resp.Status)
	if resp.StatusCode >= 400 {
		return "", nil, &RequestError{StatusCode: resp.StatusCode, Endpoint: req.URL.Path}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, errors.Wrap(err, "reading login response")
	}
	return string(data), resp.Request.URL, nil
}

// browserHeaders mimics a real browser; the portal rejects bare clients.
func browserHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.5")
	req.Header.Set("Referer", referer)
}
