package courtreserve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/example/courtsniper/internal/slots"
)

// ConsolidatedSlot is one grid cell of the whole-day scheduler view. ID
// embeds the cell's UTC timestamp, e.g. "Pickleball10/16/2025 15:00:00".
type ConsolidatedSlot struct {
	ID     string
	Courts []int
}

type consolidatedRequest struct {
	StartDate              string    `json:"startDate"`
	OrgID                  string    `json:"orgId"`
	TimeZone               string    `json:"TimeZone"`
	Date                   string    `json:"Date"`
	KendoDate              kendoDate `json:"KendoDate"`
	UiCulture              string    `json:"UiCulture"`
	CostTypeID             string    `json:"CostTypeId"`
	CustomSchedulerID      string    `json:"CustomSchedulerId"`
	ReservationMinInterval string    `json:"ReservationMinInterval"`
}

type kendoDate struct {
	Year  int `json:"Year"`
	Month int `json:"Month"`
	Day   int `json:"Day"`
}

type consolidatedResponse struct {
	Data []struct {
		ID                string    `json:"Id"`
		AvailableCourtIds []flexInt `json:"AvailableCourtIds"`
	} `json:"Data"`
}

// ReadConsolidated fetches free courts for every grid cell of date.
func (c *Client) ReadConsolidated(ctx context.Context, date time.Time) ([]ConsolidatedSlot, error) {
	// The portal pins the request to a fixed instant early on the target
	// day; timestamps in the reply are UTC regardless.
	payload := consolidatedRequest{
		StartDate:              date.Format("2006-01-02") + "T05:48:06.000Z",
		OrgID:                  c.venue.OrgID,
		TimeZone:               c.venue.TimeZone,
		Date:                   date.Format("Mon, 02 Jan 2006") + " 05:48:06 GMT",
		KendoDate:              kendoDate{Year: date.Year(), Month: int(date.Month()), Day: date.Day()},
		UiCulture:              "en-US",
		CostTypeID:             c.venue.CostTypeID,
		CustomSchedulerID:      c.venue.SchedulerID,
		ReservationMinInterval: "60",
	}
	jb, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	form := "sort=&group=&filter=&jsonData=" + url.QueryEscape(string(jb))

	u := fmt.Sprintf("%s/Online/Reservations/ReadConsolidated/%s", c.venue.Endpoints.App, c.venue.OrgID)
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	hdr.Set("X-Requested-With", "XMLHttpRequest")
	_, body, err := c.do(ctx, http.MethodPost, u, hdr, strings.NewReader(form), false)
	if err != nil {
		return nil, err
	}
	var res consolidatedResponse
	if err := decodeJSON("ReadConsolidated", body, &res); err != nil {
		return nil, err
	}
	out := make([]ConsolidatedSlot, 0, len(res.Data))
	for _, d := range res.Data {
		courts := make([]int, len(d.AvailableCourtIds))
		for i, id := range d.AvailableCourtIds {
			courts[i] = int(id)
		}
		out = append(out, ConsolidatedSlot{ID: d.ID, Courts: courts})
	}
	return out, nil
}

func portalDate(date time.Time) string {
	return date.Format("01/02/2006")
}

// AvailableCourts asks which courts can host exactly [start, start+duration).
func (c *Client) AvailableCourts(ctx context.Context, date time.Time, start slots.TimeOfDay, duration int) ([]int, error) {
	q := url.Values{}
	q.Set("uiCulture", "en-US")
	q.Set("Date", portalDate(date)+" 12:00:00 AM")
	q.Set("selectedDate", portalDate(date)+" 12:00:00 AM")
	q.Set("StartTime", start.HMS())
	q.Set("EndTime", start.Add(duration).Meridiem())
	q.Set("CourtTypesString", c.venue.CourtTypeID)
	q.Set("timeZone", c.venue.TimeZone)
	q.Set("customSchedulerId", c.venue.SchedulerID)
	q.Set("Duration", fmt.Sprint(duration))
	u := fmt.Sprintf("%s/Online/AjaxController/GetAvailableCourtsMemberPortal/%s?%s",
		c.venue.Endpoints.App, c.venue.OrgID, q.Encode())

	hdr := http.Header{}
	hdr.Set("X-Requested-With", "XMLHttpRequest")
	_, body, err := c.do(ctx, http.MethodGet, u, hdr, nil, false)
	if err != nil {
		return nil, err
	}
	var res []struct {
		ID flexInt `json:"Id"`
	}
	if err := decodeJSON("GetAvailableCourtsMemberPortal", body, &res); err != nil {
		return nil, err
	}
	out := make([]int, len(res))
	for i, r := range res {
		out[i] = int(r.ID)
	}
	return out, nil
}

// DurationOptions returns the enabled durations for a start, longest first.
func (c *Client) DurationOptions(ctx context.Context, date time.Time, start slots.TimeOfDay, duration int) ([]int, error) {
	q := url.Values{}
	q.Set("id", c.venue.OrgID)
	q.Set("reservationTypeId", c.venue.ReservationTypeID)
	q.Set("startTime", start.Meridiem())
	q.Set("selectedDate", portalDate(date))
	q.Set("uiCulture", "en-US")
	q.Set("useMinTimeAsDefault", "False")
	q.Set("courtId", "")
	q.Set("courtType", c.venue.CourtTypeID)
	q.Set("endTime", start.Add(duration).Meridiem())
	q.Set("isDynamicSlot", "False")
	q.Set("customSchedulerId", c.venue.SchedulerID)
	u := fmt.Sprintf("%s/api/v1/portalreservationsapi/GetDurationDropdown?%s", c.venue.Endpoints.API, q.Encode())

	_, body, err := c.do(ctx, http.MethodGet, u, nil, nil, false)
	if err != nil {
		return nil, err
	}
	var res []struct {
		Value    flexInt `json:"Value"`
		Disabled bool    `json:"Disabled"`
	}
	if err := decodeJSON("GetDurationDropdown", body, &res); err != nil {
		return nil, err
	}
	var out []int
	for _, r := range res {
		if !r.Disabled {
			out = append(out, int(r.Value))
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}
