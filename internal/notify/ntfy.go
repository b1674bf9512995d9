package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Ntfy posts plain-text messages to an ntfy topic.
type Ntfy struct {
	URL   string
	Topic string
	Title string
	hc    *http.Client
}

func NewNtfy(baseURL, topic string) *Ntfy {
	return &Ntfy{
		URL:   strings.TrimRight(baseURL, "/"),
		Topic: topic,
		Title: "CourtReserve Bot",
		hc:    &http.Client{Timeout: 5 * time.Second},
	}
}

var tags = map[Kind]string{
	Started: "tennis",
	Booked:  "white_check_mark",
	Missed:  "hourglass",
	Fatal:   "x",
}

func (n *Ntfy) Notify(ctx context.Context, e Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL+"/"+n.Topic, strings.NewReader(e.Message))
	if err != nil {
		return err
	}
	req.Header.Set("Title", n.Title)
	if t, ok := tags[e.Kind]; ok {
		req.Header.Set("Tags", t)
	}
	if e.Kind == Fatal || e.Kind == Booked {
		req.Header.Set("Priority", "high")
	}
	res, err := n.hc.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("ntfy: status=%d", res.StatusCode)
	}
	return nil
}

func (n *Ntfy) Close() error { return nil }
