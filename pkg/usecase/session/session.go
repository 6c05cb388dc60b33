package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/model"
	"github.com/m-mizutani/hippo/pkg/policy"
	"github.com/m-mizutani/hippo/pkg/usecase/memory"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
)

const (
	questionLabel = "What would you like to know?"
	reviewLabel   = "Is this answer accurate? (y/n)"
	exitCommand   = "exit"
	approval      = "y"

	sourceMemory = "memory"
	sourceSearch = "search"
)

// Recaller answers a question from the brain only
type Recaller interface {
	Answer(ctx context.Context, brain *memory.Brain, question string) (*model.Answer, error)
}

// Learner answers a question from outside knowledge
type Learner interface {
	Learn(ctx context.Context, question string) (string, error)
}

// Admission decides whether a learned answer may become a memory
type Admission interface {
	Evaluate(ctx context.Context, input *policy.Input) (*policy.Decision, error)
}

type state int

const (
	stateAwaitQuestion state = iota
	stateRecall
	stateLearn
	stateReview
	stateStore
	stateDone
)

func (s state) String() string {
	switch s {
	case stateAwaitQuestion:
		return "await_question"
	case stateRecall:
		return "recall"
	case stateLearn:
		return "learn"
	case stateReview:
		return "review"
	case stateStore:
		return "store"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// readsInput reports whether a failure of the state comes from the prompter.
// A broken terminal keeps failing, so such errors end the session.
func (s state) readsInput() bool {
	return s == stateAwaitQuestion || s == stateReview
}

// cycle is one question and everything that happened to it
type cycle struct {
	question string
	answer   string
	source   string
	memoryID model.MemoryID
	stored   bool
	err      error
}

// Session drives question / answer cycles against one brain
type Session struct {
	id        string
	brain     *memory.Brain
	recaller  Recaller
	learner   Learner
	prompter  adapter.Prompter
	out       io.Writer
	review    bool
	spinner   bool
	admission Admission
	journal   adapter.Journal

	// set for single shot runs
	interactive bool
}

type Option func(*Session)

// WithReview makes every learned answer wait for operator approval
func WithReview(review bool) Option {
	return func(s *Session) {
		s.review = review
	}
}

func WithPrompter(p adapter.Prompter) Option {
	return func(s *Session) {
		s.prompter = p
	}
}

func WithAdmission(a Admission) Option {
	return func(s *Session) {
		s.admission = a
	}
}

func WithJournal(j adapter.Journal) Option {
	return func(s *Session) {
		s.journal = j
	}
}

// WithSpinner shows a spinner while waiting for models
func WithSpinner(enabled bool) Option {
	return func(s *Session) {
		s.spinner = enabled
	}
}

func WithSessionID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

func New(brain *memory.Brain, recaller Recaller, learner Learner, out io.Writer, opts ...Option) *Session {
	s := &Session{
		id:       model.NewMemoryID().String(),
		brain:    brain,
		recaller: recaller,
		learner:  learner,
		out:      out,
		journal:  adapter.NopJournal{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	statusColor = color.New(color.FgYellow)
	answerColor = color.New(color.FgGreen)
	promptColor = color.New(color.FgBlue)
	errorColor  = color.New(color.FgRed)
)

func (s *Session) status(format string, args ...any) {
	statusColor.Fprintf(s.out, "\n"+format+"\n", args...)
}

func (s *Session) printAnswer(answer string) {
	answerColor.Fprintf(s.out, "\n%s\n", answer)
}

// Announce prints whether the brain existed and its size
func (s *Session) Announce(ctx context.Context) error {
	if s.brain.Created() {
		s.status("Brain not found. Creating a new brain.")
	} else {
		s.status("Brain found.")
	}
	return s.printCount(ctx)
}

func (s *Session) printCount(ctx context.Context) error {
	n, err := s.brain.Count(ctx)
	if err != nil {
		return err
	}
	s.status("Memory count: %d", n)
	return nil
}

// Run prompts for questions until the operator types "exit", input ends,
// or ctx is cancelled. A failed cycle is reported and the next question is
// asked. A failure to read input ends the session with that error.
func (s *Session) Run(ctx context.Context) error {
	if s.prompter == nil {
		return goerr.New("prompter is required for an interactive session")
	}
	s.interactive = true

	if err := s.Announce(ctx); err != nil {
		return err
	}
	return s.loop(ctx, stateAwaitQuestion, &cycle{})
}

// Once answers a single question without review and prints the memory count
// before and after. Errors end the run.
func (s *Session) Once(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return goerr.New("question is required")
	}
	s.interactive = false
	s.review = false

	if err := s.printCount(ctx); err != nil {
		return err
	}
	c := &cycle{question: question}
	if err := s.loop(ctx, stateRecall, c); err != nil {
		return err
	}
	if c.err != nil {
		return c.err
	}
	return s.printCount(ctx)
}

// loop runs the state machine. Every step returns exactly one next state.
func (s *Session) loop(ctx context.Context, st state, c *cycle) error {
	logger := logging.From(ctx)

	for st != stateDone {
		if err := ctx.Err(); err != nil {
			return goerr.Wrap(err, "session interrupted", goerr.V("state", st.String()))
		}

		next, err := s.step(ctx, st, c)
		if err != nil {
			if ctx.Err() != nil {
				return goerr.Wrap(ctx.Err(), "session interrupted", goerr.V("state", st.String()))
			}
			c.err = err
			if st.readsInput() {
				if c.question != "" {
					s.record(ctx, c)
				}
				return err
			}
			logger.Error("cycle failed", "state", st.String(), "error", err)
			errorColor.Fprintf(s.out, "\nError: %s\n", err.Error())
			next = stateAwaitQuestion
			if !s.interactive {
				next = stateDone
			}
		}
		logger.Debug("session transition", "from", st.String(), "to", next.String())

		// a cycle ends whenever the machine leaves it
		if c.question != "" && (next == stateAwaitQuestion || next == stateDone) {
			s.record(ctx, c)
			if s.interactive {
				c = &cycle{}
			}
		}
		if next == stateAwaitQuestion && !s.interactive {
			next = stateDone
		}
		st = next
	}
	return nil
}

func (s *Session) step(ctx context.Context, st state, c *cycle) (state, error) {
	switch st {
	case stateAwaitQuestion:
		return s.awaitQuestion(ctx, c)
	case stateRecall:
		return s.recall(ctx, c)
	case stateLearn:
		return s.learn(ctx, c)
	case stateReview:
		return s.reviewAnswer(ctx, c)
	case stateStore:
		return s.store(ctx, c)
	}
	return stateDone, goerr.New("unknown session state", goerr.V("state", int(st)))
}

func (s *Session) prompt(ctx context.Context, label string) (string, error) {
	promptColor.Fprintf(s.out, "\n%s\n", label)
	return s.prompter.Prompt(ctx, "> ")
}

func (s *Session) awaitQuestion(ctx context.Context, c *cycle) (state, error) {
	input, err := s.prompt(ctx, questionLabel)
	if errors.Is(err, io.EOF) {
		return stateDone, nil
	}
	if err != nil {
		return stateDone, goerr.Wrap(err, "failed to read question")
	}

	input = strings.TrimSpace(input)
	switch input {
	case "":
		return stateAwaitQuestion, nil
	case exitCommand:
		return stateDone, nil
	}

	c.question = input
	return stateRecall, nil
}

func (s *Session) recall(ctx context.Context, c *cycle) (state, error) {
	s.status("Recalling...")

	var answer *model.Answer
	err := s.wait(func() error {
		var err error
		answer, err = s.recaller.Answer(ctx, s.brain, c.question)
		return err
	})
	if err != nil {
		return stateDone, goerr.Wrap(err, "failed to recall", goerr.V("question", c.question))
	}

	if !answer.Sufficient {
		s.status("Insufficient memories. Now learning...")
		return stateLearn, nil
	}

	c.answer = answer.Text
	c.source = sourceMemory
	s.printAnswer(answer.Text)
	return stateAwaitQuestion, nil
}

func (s *Session) learn(ctx context.Context, c *cycle) (state, error) {
	var answer string
	err := s.wait(func() error {
		var err error
		answer, err = s.learner.Learn(ctx, c.question)
		return err
	})
	if err != nil {
		return stateDone, goerr.Wrap(err, "failed to learn", goerr.V("question", c.question))
	}

	c.answer = answer
	c.source = sourceSearch
	s.printAnswer(answer)
	s.status("Adding memory...")

	if s.review {
		return stateReview, nil
	}
	return stateStore, nil
}

func (s *Session) reviewAnswer(ctx context.Context, c *cycle) (state, error) {
	input, err := s.prompt(ctx, reviewLabel)
	if err != nil && !errors.Is(err, io.EOF) {
		return stateDone, goerr.Wrap(err, "failed to read review")
	}

	if err == nil && input == approval {
		return stateStore, nil
	}

	s.status("Memory discarded.")
	if errors.Is(err, io.EOF) {
		return stateDone, nil
	}
	return stateAwaitQuestion, nil
}

func (s *Session) store(ctx context.Context, c *cycle) (state, error) {
	if s.admission != nil {
		decision, err := s.admission.Evaluate(ctx, &policy.Input{
			Collection: s.brain.Name(),
			Question:   c.question,
			Answer:     c.answer,
			Source:     c.source,
		})
		if err != nil {
			return stateDone, err
		}
		if !decision.Admit {
			logging.From(ctx).Info("memory rejected by policy", "reasons", decision.Reasons)
			s.status("Memory discarded. (%s)", strings.Join(decision.Reasons, ", "))
			return stateAwaitQuestion, nil
		}
	}

	id, err := s.brain.Append(ctx, c.answer)
	if err != nil {
		return stateDone, goerr.Wrap(err, "failed to add memory")
	}

	c.memoryID = id
	c.stored = true
	logging.From(ctx).Debug("memory added", "id", id.String(), "collection", s.brain.Name())
	s.status("Added memory!")
	return stateAwaitQuestion, nil
}

// wait runs fn behind a spinner when enabled
func (s *Session) wait(fn func() error) error {
	if !s.spinner {
		return fn()
	}
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(s.out))
	sp.Start()
	defer sp.Stop()
	return fn()
}

func (s *Session) record(ctx context.Context, c *cycle) {
	entry := &adapter.JournalEntry{
		SessionID:  s.id,
		Collection: s.brain.Name(),
		Question:   c.question,
		Answer:     c.answer,
		Source:     c.source,
		MemoryID:   c.memoryID.String(),
		Stored:     c.stored,
		CreatedAt:  time.Now().UTC(),
	}
	if c.err != nil {
		entry.Error = c.err.Error()
	}

	if err := s.journal.Record(ctx, entry); err != nil {
		logging.From(ctx).Warn("failed to record journal", "error", err)
	}
}
