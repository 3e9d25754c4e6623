// Package gmailtest provides an in-memory fake of the Gmail REST API for tests.
package gmailtest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"

	gmailapi "google.golang.org/api/gmail/v1"
)

// Operation names accepted by Fail and Calls.
const (
	OpListMessages  = "messages.list"
	OpGetMessage    = "messages.get"
	OpSendMessage   = "messages.send"
	OpGetAttachment = "attachments.get"
	OpGetLabel      = "labels.get"
	OpGetThread     = "threads.get"
)

type failure struct {
	status int
	reason string
}

// Server is a fake Gmail API. Point a client at Endpoint() with
// option.WithEndpoint and option.WithHTTPClient(srv.Client()).
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	messages    []*gmailapi.Message
	labels      map[string]*gmailapi.Label
	attachments map[string][]byte
	sent        []string
	failures    map[string]failure
	calls       map[string]int
	estimate    int64
	pageSize    int
}

// NewServer starts a fake server. Close it when done.
func NewServer() *Server {
	s := &Server{
		labels:      map[string]*gmailapi.Label{},
		attachments: map[string][]byte{},
		failures:    map[string]failure{},
		calls:       map[string]int{},
		estimate:    -1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/{user}/messages", s.handle(OpListMessages, s.listMessages))
	mux.HandleFunc("GET /gmail/v1/users/{user}/messages/{id}", s.handle(OpGetMessage, s.getMessage))
	mux.HandleFunc("POST /gmail/v1/users/{user}/messages/send", s.handle(OpSendMessage, s.sendMessage))
	mux.HandleFunc("GET /gmail/v1/users/{user}/messages/{messageId}/attachments/{id}", s.handle(OpGetAttachment, s.getAttachment))
	mux.HandleFunc("GET /gmail/v1/users/{user}/labels/{id}", s.handle(OpGetLabel, s.getLabel))
	mux.HandleFunc("GET /gmail/v1/users/{user}/threads/{id}", s.handle(OpGetThread, s.getThread))
	s.Server = httptest.NewServer(mux)
	return s
}

// Endpoint is the base URL to pass to option.WithEndpoint.
func (s *Server) Endpoint() string {
	return s.URL + "/"
}

// AddMessage stores a message in "full" form. labels are appended to its
// label ids. Listings return messages in the order they were added.
func (s *Server) AddMessage(m *gmailapi.Message, labels ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.LabelIds = append(m.LabelIds, labels...)
	s.messages = append(s.messages, m)
}

// AddAttachment stores attachment bytes served by attachments.get.
func (s *Server) AddAttachment(messageID, attachmentID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[messageID+"/"+attachmentID] = data
}

// SetLabel stores a label served by labels.get.
func (s *Server) SetLabel(l *gmailapi.Label) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[l.Id] = l
}

// SetResultSizeEstimate fixes the resultSizeEstimate of listings. By
// default it is the number of matching messages.
func (s *Server) SetResultSizeEstimate(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.estimate = n
}

// SetPageSize caps the number of messages per listing page, forcing
// clients to paginate.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// Fail makes every request for op answer with status and reason. A zero
// status clears the failure.
func (s *Server) Fail(op string, status int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, op)
		return
	}
	s.failures[op] = failure{status: status, reason: reason}
}

// Calls returns how many requests were made for op.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Sent returns the decoded raw RFC 5322 messages submitted so far.
func (s *Server) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sent)
}

func (s *Server) handle(op string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[op]++
		f, failing := s.failures[op]
		s.mu.Unlock()

		if failing {
			writeError(w, f.status, f.reason)
			return
		}
		fn(w, r)
	}
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	labels := q["labelIds"]
	query := strings.ToLower(q.Get("q"))
	maxResults, _ := strconv.Atoi(q.Get("maxResults"))
	if maxResults <= 0 {
		maxResults = 100
	}
	offset, _ := strconv.Atoi(q.Get("pageToken"))

	s.mu.Lock()
	var matched []*gmailapi.Message
	for _, m := range s.messages {
		if hasLabels(m, labels) && matchesQuery(m, query) {
			matched = append(matched, m)
		}
	}
	estimate := s.estimate
	if s.pageSize > 0 {
		maxResults = min(maxResults, s.pageSize)
	}
	s.mu.Unlock()

	if estimate < 0 {
		estimate = int64(len(matched))
	}
	res := &gmailapi.ListMessagesResponse{ResultSizeEstimate: estimate}
	end := min(offset+maxResults, len(matched))
	for _, m := range matched[min(offset, len(matched)):end] {
		res.Messages = append(res.Messages, &gmailapi.Message{Id: m.Id, ThreadId: m.ThreadId})
	}
	if end < len(matched) {
		res.NextPageToken = strconv.Itoa(end)
	}
	writeJSON(w, res)
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	m := s.findMessage(r.PathValue("id"))
	if m == nil {
		writeError(w, http.StatusNotFound, "notFound")
		return
	}
	if r.URL.Query().Get("format") == "metadata" {
		writeJSON(w, metadataView(m, r.URL.Query()["metadataHeaders"]))
		return
	}
	writeJSON(w, m)
}

func (s *Server) getAttachment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, ok := s.attachments[r.PathValue("messageId")+"/"+r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "notFound")
		return
	}
	writeJSON(w, &gmailapi.MessagePartBody{
		Data: base64.URLEncoding.EncodeToString(data),
		Size: int64(len(data)),
	})
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var msg gmailapi.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil || msg.Raw == "" {
		writeError(w, http.StatusBadRequest, "invalidArgument")
		return
	}
	raw, err := base64.URLEncoding.DecodeString(msg.Raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalidArgument")
		return
	}

	s.mu.Lock()
	s.sent = append(s.sent, string(raw))
	n := len(s.sent)
	s.mu.Unlock()

	writeJSON(w, &gmailapi.Message{
		Id:       "sent-" + strconv.Itoa(n),
		ThreadId: "thread-sent-" + strconv.Itoa(n),
		LabelIds: []string{"SENT"},
	})
}

func (s *Server) getLabel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	l, ok := s.labels[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "notFound")
		return
	}
	writeJSON(w, l)
}

func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	headers := r.URL.Query()["metadataHeaders"]

	s.mu.Lock()
	thread := &gmailapi.Thread{Id: id}
	for _, m := range s.messages {
		if m.ThreadId == id {
			thread.Messages = append(thread.Messages, metadataView(m, headers))
		}
	}
	s.mu.Unlock()

	if len(thread.Messages) == 0 {
		writeError(w, http.StatusNotFound, "notFound")
		return
	}
	writeJSON(w, thread)
}

func (s *Server) findMessage(id string) *gmailapi.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.Id == id {
			return m
		}
	}
	return nil
}

// metadataView strips a message down to what format=metadata returns.
func metadataView(m *gmailapi.Message, headers []string) *gmailapi.Message {
	view := &gmailapi.Message{
		Id:       m.Id,
		ThreadId: m.ThreadId,
		LabelIds: m.LabelIds,
		Snippet:  m.Snippet,
		Payload:  &gmailapi.MessagePart{},
	}
	if m.Payload == nil {
		return view
	}
	view.Payload.MimeType = m.Payload.MimeType
	for _, h := range m.Payload.Headers {
		if len(headers) == 0 || slices.ContainsFunc(headers, func(want string) bool { return strings.EqualFold(want, h.Name) }) {
			view.Payload.Headers = append(view.Payload.Headers, h)
		}
	}
	return view
}

func hasLabels(m *gmailapi.Message, labels []string) bool {
	for _, l := range labels {
		if !slices.Contains(m.LabelIds, l) {
			return false
		}
	}
	return true
}

// matchesQuery is a stand-in for Gmail search: a case-insensitive substring
// match against the snippet and headers.
func matchesQuery(m *gmailapi.Message, query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(m.Snippet), query) {
		return true
	}
	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			if strings.Contains(strings.ToLower(h.Value), query) {
				return true
			}
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": http.StatusText(status),
			"errors": []map[string]string{{
				"message": http.StatusText(status),
				"domain":  "global",
				"reason":  reason,
			}},
		},
	})
}
