package courtreserve

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	xhtml "golang.org/x/net/html"

	"github.com/example/courtsniper/internal/internaltypes"
	"github.com/example/courtsniper/internal/slots"
)

var formURLPattern = regexp.MustCompile(`url:\s*fixUrl\('([^']+CreateReservation[^']+)'`)

const windowNotOpenMarker = "only allowed to reserve up to"

// Form is a fetched reservation form: its hidden inputs, including the
// anti-forgery token, and the page it was loaded from.
type Form struct {
	Referer string
	Fields  url.Values
}

// Reservation is what gets submitted with a Form.
type Reservation struct {
	Date     time.Time
	Start    slots.TimeOfDay
	Duration int
	Court    int
}

func (c *Client) wrapperURL(r Reservation) string {
	end := r.Start.Add(r.Duration)
	q := url.Values{}
	q.Set("start", portalDate(r.Date)+" "+r.Start.Meridiem())
	q.Set("end", portalDate(r.Date)+" "+end.Meridiem())
	q.Set("courtType", c.venue.CourtType)
	q.Set("customSchedulerId", c.venue.SchedulerID)
	return fmt.Sprintf("%s/Online/Reservations/CreateReservation/%s?%s", c.venue.Endpoints.App, c.venue.OrgID, q.Encode())
}

// FetchForm loads the reservation wrapper page, follows it to the embedded
// form and returns its hidden inputs. A form without the venue's required
// fields means the session did not survive.
func (c *Client) FetchForm(ctx context.Context, r Reservation) (Form, error) {
	wrapper := c.wrapperURL(r)
	hdr := http.Header{}
	hdr.Set("X-Requested-With", "XMLHttpRequest")
	_, body, err := c.do(ctx, http.MethodGet, wrapper, hdr, nil, false)
	if err != nil {
		return Form{}, fmt.Errorf("reservation wrapper: %w", err)
	}
	m := formURLPattern.FindSubmatch(body)
	if m == nil {
		return Form{}, fmt.Errorf("reservation wrapper: form url not found: %w", internaltypes.ErrSessionStale)
	}
	formURL, err := resolve(wrapper, html.UnescapeString(string(m[1])))
	if err != nil {
		return Form{}, err
	}

	hdr = http.Header{}
	hdr.Set("Referer", wrapper)
	_, body, err = c.do(ctx, http.MethodGet, formURL, hdr, nil, false)
	if err != nil {
		return Form{}, fmt.Errorf("reservation form: %w", err)
	}
	fields, err := HiddenInputs(strings.NewReader(string(body)))
	if err != nil {
		return Form{}, fmt.Errorf("reservation form: %v: %w", err, internaltypes.ErrRecoverableProbe)
	}
	var missing []string
	for _, k := range c.venue.RequiredFields {
		if _, ok := fields[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Form{}, fmt.Errorf("reservation form: missing %s: %w", strings.Join(missing, ","), internaltypes.ErrSessionStale)
	}
	return Form{Referer: wrapper, Fields: fields}, nil
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("form url %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// HiddenInputs collects name/value pairs of <input type="hidden"> elements.
func HiddenInputs(r io.Reader) (url.Values, error) {
	out := url.Values{}
	z := xhtml.NewTokenizer(r)
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			if z.Err() == io.EOF {
				return out, nil
			}
			return nil, z.Err()
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			t := z.Token()
			if t.Data != "input" {
				continue
			}
			var name, value, typ string
			for _, a := range t.Attr {
				switch strings.ToLower(a.Key) {
				case "name":
					name = a.Val
				case "value":
					value = a.Val
				case "type":
					typ = strings.ToLower(a.Val)
				}
			}
			if typ == "hidden" && name != "" {
				out.Set(name, value)
			}
		}
	}
}

type submitResponse struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}

// Submit posts the reservation. A "too far in advance" refusal is
// ErrBookingWindowNotOpen; any other refusal is ErrBookingRejected.
func (c *Client) Submit(ctx context.Context, f Form, r Reservation) error {
	payload := url.Values{}
	for k, v := range f.Fields {
		payload[k] = append([]string(nil), v...)
	}
	payload.Set("ReservationTypeId", c.venue.ReservationTypeID)
	payload.Set("Duration", fmt.Sprint(r.Duration))
	payload.Set("StartTime", r.Start.HMS())
	payload.Set("DisclosureAgree", "true")
	if c.venue.SubmitCourt {
		payload.Set("CourtId", fmt.Sprint(r.Court))
		payload.Set("EndTime", r.Start.Add(r.Duration).Meridiem())
	}

	u := fmt.Sprintf("%s/Online/ReservationsApi/CreateReservation/%s?uiCulture=en-US", c.venue.Endpoints.Reservations, c.venue.OrgID)
	hdr := http.Header{}
	hdr.Set("X-Requested-With", "XMLHttpRequest")
	hdr.Set("Referer", c.venue.Endpoints.App+"/")
	hdr.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	_, body, err := c.do(ctx, http.MethodPost, u, hdr, strings.NewReader(payload.Encode()), false)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	var res submitResponse
	if err := decodeJSON("CreateReservation", body, &res); err != nil {
		return err
	}
	if res.IsValid {
		return nil
	}
	msg := strings.TrimSpace(res.Message)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if strings.Contains(strings.ToLower(msg), windowNotOpenMarker) {
		return fmt.Errorf("%s: %w", msg, internaltypes.ErrBookingWindowNotOpen)
	}
	return fmt.Errorf("%s: %w", msg, internaltypes.ErrBookingRejected)
}
