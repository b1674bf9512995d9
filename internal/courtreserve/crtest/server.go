// Package crtest runs an in-process fake of the CourtReserve member portal
// for tests.
package crtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/example/courtsniper/internal/venue"
)

const (
	OrgID         = "1001"
	sessionCookie = "CRSession"
	token         = "tok-123"
)

// Slot is one whole-day grid cell served by ReadConsolidated.
type Slot struct {
	ID     string `json:"Id"`
	Courts []int  `json:"AvailableCourtIds"`
}

// SubmitFunc decides the outcome of a reservation POST.
type SubmitFunc func(form url.Values) (ok bool, message string)

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[string]string
	sessions  map[string]string
	slots     []Slot
	courts    func(start string, duration int) []int
	durations []int
	submit    SubmitFunc
	submitted []url.Values
	failNext  map[string]int

	Logins      atomic.Int32
	Pings       atomic.Int32
	Consolidate atomic.Int32
	CourtProbes atomic.Int32
	Forms       atomic.Int32
}

func New() *Server {
	s := &Server{
		users:    map[string]string{},
		sessions: map[string]string{},
		failNext: map[string]int{},
		submit:   func(url.Values) (bool, string) { return true, "" },
		courts:   func(string, int) []int { return nil },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/Online/Account/LogIn/", s.handleLoginPage)
	mux.HandleFunc("/Online/Account/Login", s.handleLogin)
	mux.HandleFunc("/Online/Reservations/ReadConsolidated/", s.authed(s.handleConsolidated))
	mux.HandleFunc("/Online/AjaxController/GetAvailableCourtsMemberPortal/", s.authed(s.handleCourts))
	mux.HandleFunc("/api/v1/portalreservationsapi/GetDurationDropdown", s.authed(s.handleDurations))
	mux.HandleFunc("/Online/Reservations/CreateReservation/", s.authed(s.handleWrapper))
	mux.HandleFunc("/Online/Reservations/CreateReservationForm/", s.authed(s.handleForm))
	mux.HandleFunc("/Online/ReservationsApi/CreateReservation/", s.authed(s.handleSubmit))
	s.Server = httptest.NewServer(mux)
	return s
}

// Profile returns a venue profile pointing every endpoint at the fake.
func (s *Server) Profile(strategy venue.Strategy) venue.Profile {
	return venue.Profile{
		Name:              "test-venue",
		OrgID:             OrgID,
		SchedulerID:       "77",
		ReservationTypeID: "69707",
		CostTypeID:        "1",
		CourtType:         "Pickleball",
		CourtTypeID:       "9",
		TimeZone:          "America/Los_Angeles",
		StdOffsetHours:    -8,
		Strategy:          strategy,
		Endpoints:         venue.Endpoints{App: s.URL, API: s.URL, Reservations: s.URL},
		Cadence:           venue.Cadence{Interval: time.Minute, BurstAttempts: 1},
		SubmitCourt:       strategy == venue.PerWindow,
		RequiredFields:    []string{"__RequestVerificationToken"},
	}
}

func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
}

// Revoke invalidates every session of email, as an expiry on the portal would.
func (s *Server) Revoke(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.sessions {
		if e == email {
			delete(s.sessions, id)
		}
	}
}

func (s *Server) SetSlots(slots []Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = slots
}

func (s *Server) SetCourts(fn func(start string, duration int) []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courts = fn
}

func (s *Server) SetDurations(d []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = d
}

func (s *Server) SetSubmit(fn SubmitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submit = fn
}

// FailNext makes the next n requests whose path contains pathPart return 503.
func (s *Server) FailNext(pathPart string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[pathPart] = n
}

func (s *Server) Submitted() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.submitted...)
}

func (s *Server) injectFailure(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for part, n := range s.failNext {
		if n > 0 && strings.Contains(path, part) {
			s.failNext[part] = n - 1
			return true
		}
	}
	return false
}

func (s *Server) userFor(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[c.Value]
	return e, ok
}

func (s *Server) authed(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.injectFailure(r.URL.Path) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		email, ok := s.userFor(r)
		if !ok {
			http.Redirect(w, r, "/Online/Account/LogIn/"+OrgID, http.StatusFound)
			return
		}
		h(w, r, email)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.Pings.Add(1)
	if s.injectFailure(r.URL.Path) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, "<html><body>login</body></html>")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.Logins.Add(1)
	var req struct {
		UserNameOrEmail string
		Password        string
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || r.Header.Get("reactsubmit") != "true" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	pw, ok := s.users[req.UserNameOrEmail]
	valid := ok && pw == req.Password
	id := uuid.NewString()
	if valid {
		s.sessions[id] = req.UserNameOrEmail
	}
	s.mu.Unlock()
	if !valid {
		writeJSON(w, map[string]any{"IsValid": false, "Message": "Invalid login"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/"})
	writeJSON(w, map[string]any{"IsValid": true})
}

func (s *Server) handleConsolidated(w http.ResponseWriter, r *http.Request, _ string) {
	s.Consolidate.Add(1)
	if err := r.ParseForm(); err != nil || r.PostForm.Get("jsonData") == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	data := append([]Slot(nil), s.slots...)
	s.mu.Unlock()
	writeJSON(w, map[string]any{"Data": data})
}

func (s *Server) handleCourts(w http.ResponseWriter, r *http.Request, _ string) {
	s.CourtProbes.Add(1)
	q := r.URL.Query()
	d, _ := strconv.Atoi(q.Get("Duration"))
	s.mu.Lock()
	fn := s.courts
	s.mu.Unlock()
	var out []map[string]any
	for _, id := range fn(q.Get("StartTime"), d) {
		out = append(out, map[string]any{"Id": id, "Name": fmt.Sprintf("Court #%d", id)})
	}
	if out == nil {
		out = []map[string]any{}
	}
	writeJSON(w, out)
}

func (s *Server) handleDurations(w http.ResponseWriter, r *http.Request, _ string) {
	s.mu.Lock()
	ds := s.durations
	s.mu.Unlock()
	out := []map[string]any{}
	for _, d := range []int{30, 60, 90, 120} {
		enabled := false
		for _, e := range ds {
			if e == d {
				enabled = true
			}
		}
		out = append(out, map[string]any{"Value": strconv.Itoa(d), "Text": fmt.Sprintf("%d minutes", d), "Disabled": !enabled})
	}
	writeJSON(w, out)
}

func (s *Server) handleWrapper(w http.ResponseWriter, r *http.Request, _ string) {
	q := url.Values{}
	q.Set("start", r.URL.Query().Get("start"))
	q.Set("end", r.URL.Query().Get("end"))
	formURL := "/Online/Reservations/CreateReservationForm/" + OrgID + "?" + q.Encode()
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, "<script>$(function(){ loadForm({ url: fixUrl('%s'), type: 'GET' }); });</script>",
		strings.ReplaceAll(formURL, "&", "&amp;"))
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request, _ string) {
	s.Forms.Add(1)
	if r.URL.Query().Get("start") == "" {
		http.Error(w, "missing start", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<form>
<input name="__RequestVerificationToken" type="hidden" value="%s" />
<input type="hidden" name="Id" value="%s">
<input type="hidden" name="OrgId" value="%s">
<input type="hidden" name="Date" value="%s">
<input type="text" name="Notes" value="">
</form>`, token, OrgID, OrgID, r.URL.Query().Get("start"))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, email string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("__RequestVerificationToken") != token {
		writeJSON(w, map[string]any{"isValid": false, "message": "anti-forgery token mismatch"})
		return
	}
	form := url.Values{}
	for k, v := range r.PostForm {
		form[k] = v
	}
	form.Set("_user", email)
	s.mu.Lock()
	fn := s.submit
	s.submitted = append(s.submitted, form)
	s.mu.Unlock()
	ok, msg := fn(form)
	writeJSON(w, map[string]any{"isValid": ok, "message": msg})
}
