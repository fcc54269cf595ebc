package ftest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	DefaultUser = "jdoe"
	DefaultPass = "password"

	exchangePrefix = "/exchange/"
	authPath       = "/exchweb/bin/auth/owaauth.dll"
	sessionCookie  = "sessionid"
)

// FolderMessage seeds one message into the fake OWA frontend.
type FolderMessage struct {
	Folder string
	Name   string
	Raw    string
}

type storedMessage struct {
	id  string
	raw string
}

// Server is a fake Outlook Web Access frontend. It renders the same HTML
// shapes the scraper consumes: a logon form, paginated folder listings with
// Next Page links that wrap on the last page, message sources behind
// ?Cmd=body, and a POST delete endpoint.
type Server struct {
	*httptest.Server

	formLogin bool
	pageSize  int

	mu            sync.Mutex
	folders       map[string][]storedMessage
	logins        int
	deletes       []string
	translateSeen int
	listingServes int
	messageServes int
}

// SetupOWAServer starts a fake OWA that authenticates through the logon form.
func SetupOWAServer(t *testing.T, extraFolders []string, messages []FolderMessage, pageSize int) (*Server, func()) {
	t.Helper()
	return setupServer(t, extraFolders, messages, pageSize, true)
}

// SetupBasicAuthOWAServer starts a fake OWA with no logon form; opening the
// exchange root with valid basic auth lands directly on the mail page.
func SetupBasicAuthOWAServer(t *testing.T, extraFolders []string, messages []FolderMessage, pageSize int) (*Server, func()) {
	t.Helper()
	return setupServer(t, extraFolders, messages, pageSize, false)
}

func setupServer(t *testing.T, extraFolders []string, messages []FolderMessage, pageSize int, formLogin bool) (*Server, func()) {
	t.Helper()

	if pageSize <= 0 {
		pageSize = 25
	}

	srv := &Server{
		formLogin: formLogin,
		pageSize:  pageSize,
		folders:   map[string][]storedMessage{"inbox": {}},
	}

	for _, folder := range extraFolders {
		if strings.TrimSpace(folder) == "" {
			continue
		}
		srv.folders[strings.ToLower(folder)] = []storedMessage{}
	}

	for _, msg := range messages {
		folder := strings.TrimSpace(msg.Folder)
		if folder == "" {
			t.Fatalf("message folder is required")
		}
		key := strings.ToLower(folder)
		id := escapeSegment(folder) + "/" + escapeSegment(msg.Name)
		srv.folders[key] = append(srv.folders[key], storedMessage{id: id, raw: msg.Raw})
	}

	srv.Server = httptest.NewServer(http.HandlerFunc(srv.handle))

	cleanup := func() {
		srv.Close()
	}

	return srv, cleanup
}

// LoginCount reports how many successful logins the server has seen.
func (s *Server) LoginCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// DeletedIds lists the message ids removed through the delete endpoint.
func (s *Server) DeletedIds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.deletes...)
}

// TranslateHeaderCount reports how many message fetches carried Translate: f.
func (s *Server) TranslateHeaderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.translateSeen
}

// ListingServes reports how many listing pages were served.
func (s *Server) ListingServes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listingServes
}

// MessageServes reports how many message bodies were served.
func (s *Server) MessageServes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageServes
}

// Remove drops a message from the folder store out of band, simulating
// another client deleting it.
func (s *Server) Remove(folder, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := escapeSegment(folder) + "/" + escapeSegment(name)
	key := strings.ToLower(folder)
	kept := s.folders[key][:0]
	for _, msg := range s.folders[key] {
		if msg.id != id {
			kept = append(kept, msg)
		}
	}
	s.folders[key] = kept
}

func (s *Server) userBase() string {
	return s.URL + exchangePrefix + DefaultUser + "/"
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == authPath && r.Method == http.MethodPost {
		s.handleAuth(w, r)
		return
	}

	if !strings.HasPrefix(r.URL.Path, exchangePrefix) {
		http.NotFound(w, r)
		return
	}

	if r.URL.Path == exchangePrefix {
		s.handleRoot(w, r)
		return
	}

	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="OWA"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rest := strings.TrimPrefix(r.URL.EscapedPath(), exchangePrefix+DefaultUser+"/")
	if rest == r.URL.EscapedPath() {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		s.handleDelete(w, r, rest)
		return
	}

	if strings.HasSuffix(rest, "/") && r.URL.Query().Get("Cmd") == "contents" {
		s.handleListing(w, r, strings.TrimSuffix(rest, "/"))
		return
	}

	if r.URL.Query().Get("Cmd") == "body" {
		s.handleMessage(w, r, rest)
		return
	}

	http.NotFound(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if s.formLogin {
		fmt.Fprintf(w, `<html><head><title>Outlook Web Access</title></head><body>
<form name="logonForm" action="%s" method="post">
<input type="text" name="username">
<input type="password" name="password">
<input type="hidden" name="destination" value="%s">
<input type="submit" value="Log On">
</form>
</body></html>`, authPath, s.URL+exchangePrefix)
		return
	}

	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="OWA"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	s.logins++
	s.mu.Unlock()
	s.writeLandingPage(w)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if r.PostFormValue("username") != DefaultUser || r.PostFormValue("password") != DefaultPass {
		fmt.Fprint(w, `<html><body>
<p>You could not be logged on to Outlook Web Access. Verify that your user name and password are correct, and then try again.</p>
</body></html>`)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "1", Path: "/"})
	s.mu.Lock()
	s.logins++
	s.mu.Unlock()
	s.writeLandingPage(w)
}

func (s *Server) writeLandingPage(w http.ResponseWriter) {
	base := s.userBase()
	fmt.Fprintf(w, `<html><head><base href="%s"></head><body>
<a href="inbox/?Cmd=contents">Inbox</a>
</body></html>`, base)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.formLogin {
		if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value == "1" {
			return true
		}
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == DefaultUser && pass == DefaultPass
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request, folderEsc string) {
	folderName, err := url.PathUnescape(folderEsc)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	messages, ok := s.folders[strings.ToLower(folderName)]
	ids := make([]string, len(messages))
	for i, msg := range messages {
		ids[i] = msg.id
	}
	s.listingServes++
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	totalPages := (len(ids) + s.pageSize - 1) / s.pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("Page"))
	if page < 1 {
		page = 1
	}
	// Real OWA re-serves the last page when Next Page is clicked past the
	// end; the scraper relies on that wrap to stop walking.
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * s.pageSize
	end := start + s.pageSize
	if end > len(ids) {
		end = len(ids)
	}

	builder := &strings.Builder{}
	fmt.Fprintf(builder, `<html><head><base href="%s"></head><body>`, s.userBase())
	fmt.Fprintf(builder, `<p>Page %d&nbsp;of&nbsp;%d</p>`, page, totalPages)
	builder.WriteString("<table>")
	for _, id := range ids[start:end] {
		fmt.Fprintf(builder, `<tr><td><a href="%s%s">%s</a></td></tr>`, exchangePrefix+DefaultUser+"/", id, id)
	}
	builder.WriteString("</table>")
	if totalPages > 1 {
		fmt.Fprintf(builder, `<a href="%s/?Cmd=contents&Page=%d">Next Page</a>`, folderEsc, page+1)
	}
	builder.WriteString("</body></html>")

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, builder.String())
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request, id string) {
	if r.Header.Get("Translate") == "f" {
		s.mu.Lock()
		s.translateSeen++
		s.mu.Unlock()
	}

	s.mu.Lock()
	raw, found := s.lookupLocked(id)
	if found {
		s.messageServes++
	}
	s.mu.Unlock()

	if !found {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, raw)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if r.PostFormValue("Cmd") != "delete" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, messages := range s.folders {
		kept := messages[:0]
		removed := false
		for _, msg := range messages {
			if msg.id == id {
				removed = true
				continue
			}
			kept = append(kept, msg)
		}
		if removed {
			s.folders[key] = kept
			s.deletes = append(s.deletes, id)
			fmt.Fprint(w, "<html><body></body></html>")
			return
		}
	}

	http.NotFound(w, r)
}

func (s *Server) lookupLocked(id string) (string, bool) {
	for _, messages := range s.folders {
		for _, msg := range messages {
			if msg.id == id {
				return msg.raw, true
			}
		}
	}
	return "", false
}

func escapeSegment(segment string) string {
	return (&url.URL{Path: segment}).EscapedPath()
}
