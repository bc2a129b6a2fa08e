package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/driptext/driptext/internal/assembler"
	"github.com/driptext/driptext/internal/config"
	"github.com/driptext/driptext/internal/dispatch"
	"github.com/driptext/driptext/internal/intake"
	"github.com/driptext/driptext/internal/textseg"
	"github.com/driptext/driptext/internal/tracker"
	"github.com/driptext/driptext/pkg/log"
)

// TextStore persists the text catalog.
type TextStore interface {
	SaveText(ctx context.Context, t *textseg.Text) error
	LoadTexts(ctx context.Context) ([]*textseg.Text, error)
}

// Service wires segmentation, dispatch, intake and assembly together
// and is the single entry point the HTTP API and the scheduler talk to.
type Service struct {
	registry   *tracker.Registry
	assembler  *assembler.Assembler
	channels   map[tracker.ChannelType]dispatch.Channel
	settings   *config.SettingsStore
	store      TextStore
	resolver   *intake.Resolver
	errHandler ErrorHandler

	dataDir       string
	outputDir     string
	defaultPolicy textseg.Policy
	defaultTarget language.Tag

	mu      sync.RWMutex
	catalog map[string]*textseg.Text
	byTitle map[string]string

	// collapses concurrent dispatch cycle requests (cron + manual
	// trigger) into one run
	dispatchGroup singleflight.Group

	cronMu    sync.Mutex
	scheduler *cron.Cron
	entryID   cron.EntryID
}

// Option is a function type for configuring Service
type Option func(*Service)

func WithDataDir(dir string) Option {
	return func(s *Service) { s.dataDir = dir }
}

func WithOutputDir(dir string) Option {
	return func(s *Service) { s.outputDir = dir }
}

func WithDefaultPolicy(p textseg.Policy) Option {
	return func(s *Service) { s.defaultPolicy = p }
}

func WithDefaultTargetLang(tag language.Tag) Option {
	return func(s *Service) { s.defaultTarget = tag }
}

// New builds a Service and hydrates the text catalog from the store.
func New(registry *tracker.Registry, channels map[tracker.ChannelType]dispatch.Channel, settings *config.SettingsStore, store TextStore, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, NewError(ErrorTypeInvalidInput, "registry is required")
	}
	if settings == nil {
		return nil, NewError(ErrorTypeInvalidInput, "settings store is required")
	}

	s := &Service{
		registry:      registry,
		assembler:     assembler.New(),
		channels:      channels,
		settings:      settings,
		store:         store,
		errHandler:    NewDefaultErrorHandler(),
		dataDir:       "data/texts",
		outputDir:     "data/translated",
		defaultPolicy: textseg.Policy{MaxUnits: 200, Unit: textseg.UnitChars, SentenceAligned: true},
		defaultTarget: language.Spanish,
		catalog:       make(map[string]*textseg.Text),
		byTitle:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = intake.NewResolver(registry, s)

	if store != nil {
		texts, err := store.LoadTexts(context.Background())
		if err != nil {
			return nil, WrapError(ErrorTypeStore, "load text catalog", err)
		}
		for _, t := range texts {
			s.catalog[t.ID] = t
			s.byTitle[t.Title] = t.ID
		}
	}
	return s, nil
}

// TextInput describes a text to register. Content is used when set,
// otherwise File names a file under the data directory.
type TextInput struct {
	Title      string          `json:"title"`
	Author     string          `json:"author"`
	Content    string          `json:"content"`
	File       string          `json:"file"`
	TargetLang string          `json:"target_lang"`
	Policy     *textseg.Policy `json:"policy"`
}

// RegisterText normalizes, segments and persists a new source text.
func (s *Service) RegisterText(ctx context.Context, in TextInput) (*textseg.Text, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, NewError(ErrorTypeInvalidInput, "title is required")
	}

	content := in.Content
	if content == "" && in.File != "" {
		data, err := os.ReadFile(filepath.Join(s.dataDir, filepath.Base(in.File)))
		if err != nil {
			return nil, WrapError(ErrorTypeInvalidInput, "read text file", err)
		}
		content = string(data)
	}
	normalized := textseg.Normalize(content)
	if normalized == "" {
		return nil, NewError(ErrorTypeInvalidInput, "text content is empty")
	}

	policy := s.defaultPolicy
	if in.Policy != nil {
		policy = *in.Policy
	}
	portions, err := textseg.Segment(normalized, policy)
	if err != nil {
		return nil, classify(err, "segment text")
	}

	target := s.defaultTarget
	if in.TargetLang != "" {
		tag, err := language.Parse(in.TargetLang)
		if err != nil {
			return nil, WrapError(ErrorTypeInvalidInput, "invalid target language", err)
		}
		target = tag
	}

	text := &textseg.Text{
		ID:         "txt-" + uuid.NewString(),
		Title:      title,
		Author:     strings.TrimSpace(in.Author),
		SourceLang: textseg.DetectLanguage(normalized),
		TargetLang: target,
		Content:    normalized,
		Portions:   portions,
		CreatedAt:  time.Now().UTC(),
	}
	for i := range text.Portions {
		text.Portions[i].TextID = text.ID
	}

	s.mu.Lock()
	if _, exists := s.byTitle[title]; exists {
		s.mu.Unlock()
		return nil, NewError(ErrorTypeConflict, fmt.Sprintf("a text titled %q is already registered", title))
	}
	s.catalog[text.ID] = text
	s.byTitle[title] = text.ID
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveText(ctx, text); err != nil {
			s.mu.Lock()
			delete(s.catalog, text.ID)
			delete(s.byTitle, title)
			s.mu.Unlock()
			return nil, WrapError(ErrorTypeStore, "persist text", err)
		}
	}

	log.Info("Registered text %s (%q, %d portions)", text.ID, title, len(portions))
	return text, nil
}

// GetText returns a text from the catalog.
func (s *Service) GetText(id string) (*textseg.Text, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.catalog[id]
	if !ok {
		return nil, NewError(ErrorTypeNotFound, "no text with id "+id)
	}
	return t, nil
}

// ListTexts returns the catalog ordered by registration time.
func (s *Service) ListTexts() []*textseg.Text {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]*textseg.Text, 0, len(s.catalog))
	for _, t := range s.catalog {
		ret = append(ret, t)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].CreatedAt.Before(ret[j].CreatedAt) })
	return ret
}

// TextIDByTitle implements intake.TextIndex.
func (s *Service) TextIDByTitle(title string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byTitle[title]
	return id, ok
}

// RegisterUser adds a translator.
func (s *Service) RegisterUser(name, email, phone string, preferred tracker.ChannelType) (*tracker.User, error) {
	u, err := s.registry.CreateUser(name, email, phone, preferred)
	if err != nil {
		var inUse *tracker.ContactInUseError
		if errors.As(err, &inUse) {
			return nil, WrapError(ErrorTypeConflict, "register user", err)
		}
		return nil, WrapError(ErrorTypeInvalidInput, "register user", err)
	}
	return u, nil
}

// GetUser returns a registered translator.
func (s *Service) GetUser(id string) (*tracker.User, error) {
	u, ok := s.registry.GetUser(id)
	if !ok {
		return nil, NewError(ErrorTypeNotFound, "no user with id "+id)
	}
	return u, nil
}

// ListUsers returns all registered translators.
func (s *Service) ListUsers() []*tracker.User {
	return s.registry.ListUsers()
}

// AssignText starts a user on a text. The portion count is fixed from
// the text's segmentation; the duplicate policy defaults to the current
// runtime setting when not given.
func (s *Service) AssignText(userID, textID string, policy tracker.DuplicatePolicy) (*tracker.Assignment, error) {
	if _, ok := s.registry.GetUser(userID); !ok {
		return nil, NewError(ErrorTypeNotFound, "no user with id "+userID)
	}
	text, err := s.GetText(textID)
	if err != nil {
		return nil, err
	}
	if policy == "" {
		policy = s.settings.Get().DuplicatePolicy
	}

	a, err := s.registry.Create(userID, textID, len(text.Portions), policy)
	if err != nil {
		var assigned *tracker.AlreadyAssignedError
		if errors.As(err, &assigned) {
			return nil, WrapError(ErrorTypeConflict, "assign text", err)
		}
		return nil, WrapError(ErrorTypeInvalidInput, "assign text", err)
	}
	log.Info("Assigned text %s to user %s (%d portions, %d cycles at current pace)",
		textID, userID, a.PortionCount, text.CyclesToComplete(s.settings.Get().PortionsPerCycle))
	return a, nil
}

// GetAssignment returns a snapshot of an assignment.
func (s *Service) GetAssignment(id string) (*tracker.Assignment, error) {
	a, ok := s.registry.Get(id)
	if !ok {
		return nil, NewError(ErrorTypeNotFound, "no assignment with id "+id)
	}
	return a, nil
}

// ListAssignments returns snapshots of all assignments.
func (s *Service) ListAssignments() []*tracker.Assignment {
	return s.registry.List()
}

// CycleReport summarizes one dispatch cycle.
type CycleReport struct {
	Assignments int       `json:"assignments"`
	Sent        int       `json:"portions_sent"`
	Failed      int       `json:"failed"`
	Completed   int       `json:"fully_sent"`
	RanAt       time.Time `json:"ran_at"`
}

// RunDispatchCycle sends each active assignment its next portions, up
// to the configured portions-per-cycle. The cursor advances only after
// the channel acknowledged a send; a failed send stops that assignment
// for this cycle and the same portion goes out next time. Concurrent
// calls collapse into a single run.
func (s *Service) RunDispatchCycle(ctx context.Context) (*CycleReport, error) {
	v, err, _ := s.dispatchGroup.Do("dispatch-cycle", func() (interface{}, error) {
		return s.runCycle(ctx), nil
	})
	if err != nil {
		return nil, WrapError(ErrorTypeDispatch, "dispatch cycle", err)
	}
	return v.(*CycleReport), nil
}

func (s *Service) runCycle(ctx context.Context) *CycleReport {
	perCycle := s.settings.Get().PortionsPerCycle
	assignments := s.registry.List()
	report := &CycleReport{Assignments: len(assignments), RanAt: time.Now().UTC()}

	for _, a := range assignments {
		if a.FullySent() {
			report.Completed++
			continue
		}
		user, ok := s.registry.GetUser(a.UserID)
		if !ok {
			log.Warn("Assignment %s references unknown user %s, skipping", a.ID, a.UserID)
			report.Failed++
			continue
		}
		text, err := s.GetText(a.TextID)
		if err != nil {
			log.Warn("Assignment %s references unknown text %s, skipping", a.ID, a.TextID)
			report.Failed++
			continue
		}
		channel, ok := s.channels[user.Preferred]
		if !ok {
			log.Warn("No %s channel configured for user %s, skipping assignment %s", user.Preferred, user.ID, a.ID)
			report.Failed++
			continue
		}

		for sent := 0; sent < perCycle; sent++ {
			idx, more, err := s.registry.NextIndex(a.ID)
			if err != nil || !more {
				break
			}
			msg := dispatch.FormatPortion(text.Title, idx, text.Portions[idx].Content)
			if err := channel.Send(ctx, user.Contact(), msg); err != nil {
				// not acknowledged: leave the cursor so the portion is retried next cycle
				log.Error("Failed to send portion %d of %s to %s: %v", idx, a.ID, user.Contact(), err)
				report.Failed++
				break
			}
			if err := s.registry.Advance(a.ID); err != nil {
				log.Error("Failed to advance assignment %s: %v", a.ID, err)
				break
			}
			report.Sent++
		}
	}

	log.Info("Dispatch cycle done: %d assignments, %d sent, %d failed, %d fully sent",
		report.Assignments, report.Sent, report.Failed, report.Completed)
	return report
}

// ReplyReport summarizes the outcome of one inbound reply.
type ReplyReport struct {
	AssignmentID string            `json:"assignment_id"`
	Accepted     []int             `json:"accepted_portions"`
	Rejected     map[string]string `json:"rejected_portions,omitempty"`
	Complete     bool              `json:"translation_complete"`
}

// ProcessReply resolves an inbound message to an assignment, parses the
// tagged translations out of its body and records each one. Indices
// that fail validation are reported per-portion; one bad tag does not
// sink the rest of the reply.
func (s *Service) ProcessReply(msg intake.Inbound) (*ReplyReport, error) {
	a, err := s.resolver.Resolve(msg)
	if err != nil {
		return nil, classify(err, "resolve reply")
	}
	parts, err := intake.ParseReply(msg.Body)
	if err != nil {
		return nil, classify(err, "parse reply")
	}

	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	indices := make([]int, 0, len(parts))
	for idx := range parts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	report := &ReplyReport{AssignmentID: a.ID, Accepted: make([]int, 0, len(indices))}
	var (
		updated  *tracker.Assignment
		firstErr error
	)
	for _, idx := range indices {
		snapshot, err := s.registry.RecordSubmission(a.ID, idx, parts[idx], receivedAt)
		if err != nil {
			if report.Rejected == nil {
				report.Rejected = make(map[string]string)
			}
			// tags in messages are 1-based
			report.Rejected[fmt.Sprintf("%d", idx+1)] = err.Error()
			if firstErr == nil {
				firstErr = err
			}
			log.Warn("Rejected submission [%d] for %s: %v", idx+1, a.ID, err)
			continue
		}
		report.Accepted = append(report.Accepted, idx+1)
		updated = snapshot
	}
	if updated != nil {
		report.Complete = updated.Complete()
	}
	if len(report.Accepted) == 0 && firstErr != nil {
		return report, classify(firstErr, "record submission")
	}

	log.Info("Processed reply for %s: %d accepted, %d rejected", a.ID, len(report.Accepted), len(report.Rejected))
	return report, nil
}

// AssembleDocument merges an assignment's submissions into the final
// translated document. Fails with the missing indices while any
// portion is still untranslated.
func (s *Service) AssembleDocument(id string) (*assembler.Document, error) {
	a, err := s.GetAssignment(id)
	if err != nil {
		return nil, err
	}
	doc, err := s.assembler.Assemble(a)
	if err != nil {
		return nil, classify(err, "assemble document")
	}
	return doc, nil
}

// ExportDocument writes the assignment's translation state to the
// output directory and returns the file path. Gaps are allowed.
func (s *Service) ExportDocument(id, format string) (string, error) {
	a, err := s.GetAssignment(id)
	if err != nil {
		return "", err
	}
	text, err := s.GetText(a.TextID)
	if err != nil {
		return "", err
	}
	path, err := s.assembler.Export(s.outputDir, text, a, format)
	if err != nil {
		return "", WrapError(ErrorTypeInvalidInput, "export document", err)
	}
	return path, nil
}

// Progress reports how far an assignment's translation has come.
func (s *Service) Progress(id string) (assembler.Status, error) {
	a, err := s.GetAssignment(id)
	if err != nil {
		return assembler.Status{}, err
	}
	text, err := s.GetText(a.TextID)
	if err != nil {
		return assembler.Status{}, err
	}
	return s.assembler.Status(text, a), nil
}

// Settings returns the current runtime settings.
func (s *Service) Settings() config.RuntimeSettings {
	return s.settings.Get()
}

// UpdateSettings persists new runtime settings and reschedules the
// dispatch cron when its expression changed.
func (s *Service) UpdateSettings(settings config.RuntimeSettings) error {
	old := s.settings.Get()
	if err := s.settings.Update(settings); err != nil {
		return WrapError(ErrorTypeInvalidInput, "update settings", err)
	}
	if settings.CronExpr != old.CronExpr {
		if err := s.reschedule(settings.CronExpr); err != nil {
			return err
		}
	}
	return nil
}

// StartScheduler begins running dispatch cycles on the configured cron
// expression.
func (s *Service) StartScheduler() error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.scheduler != nil {
		return nil
	}

	c := cron.New()
	expr := s.settings.Get().CronExpr
	id, err := c.AddFunc(expr, s.runScheduled)
	if err != nil {
		return WrapError(ErrorTypeInvalidInput, "schedule dispatch", err)
	}
	s.scheduler = c
	s.entryID = id
	c.Start()
	log.Info("Dispatch scheduler started (%s)", expr)
	return nil
}

// StopScheduler stops the cron and waits for a running cycle to finish.
func (s *Service) StopScheduler(ctx context.Context) {
	s.cronMu.Lock()
	c := s.scheduler
	s.scheduler = nil
	s.cronMu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Service) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := s.RunDispatchCycle(ctx); err != nil {
		s.errHandler.Handle(err)
	}
}

func (s *Service) reschedule(expr string) error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.scheduler == nil {
		return nil
	}
	id, err := s.scheduler.AddFunc(expr, s.runScheduled)
	if err != nil {
		return WrapError(ErrorTypeInvalidInput, "reschedule dispatch", err)
	}
	s.scheduler.Remove(s.entryID)
	s.entryID = id
	log.Info("Dispatch schedule changed to %s", expr)
	return nil
}
