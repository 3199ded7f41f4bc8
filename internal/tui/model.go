package tui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfqa/internal/domain"
	"pdfqa/internal/service"
)

// PipelinePort is the TUI-facing subset of the pipeline.
type PipelinePort interface {
	IngestFile(ctx context.Context, path string, progress service.ProgressFunc) (*domain.IngestReport, error)
	Answer(ctx context.Context, query string, topK int) (*domain.Answer, error)
}

type focus int

const (
	focusPath focus = iota
	focusQuery
)

type (
	progressMsg   domain.Progress
	ingestDoneMsg struct {
		report *domain.IngestReport
		err    error
	}
	answerMsg struct {
		answer *domain.Answer
		err    error
	}
)

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	pipeline PipelinePort
	topK     int

	pathInput  textinput.Model
	queryInput textinput.Model
	focus      focus
	spinner    spinner.Model
	viewport   viewport.Model

	busy     bool
	cancel   context.CancelFunc
	updates  chan tea.Msg
	progress domain.Progress

	answer *domain.Answer
	cursor int
	status string
	ready  bool
}

// New creates a new TUI model. A non-empty path starts ingesting it on Init.
func New(pipeline PipelinePort, topK int, path string) Model {
	pi := textinput.New()
	pi.Prompt = "PDF> "
	pi.Placeholder = "path/to/file.pdf and press Enter"
	pi.CharLimit = 0
	pi.SetValue(path)
	pi.Focus()

	qi := textinput.New()
	qi.Prompt = "Ask> "
	qi.Placeholder = "Type a question and press Enter"
	qi.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		pipeline:   pipeline,
		topK:       topK,
		pathInput:  pi,
		queryInput: qi,
		spinner:    sp,
		viewport:   viewport.New(0, 0),
		status:     "Choose a PDF to ingest, or Tab to ask about what is already indexed.",
	}
}

// Init starts the cursor blink, and ingestion when a path was given.
func (m Model) Init() tea.Cmd {
	if strings.TrimSpace(m.pathInput.Value()) != "" {
		return func() tea.Msg { return tea.KeyMsg{Type: tea.KeyEnter} }
	}
	return textinput.Blink
}

// Update handles key, window and pipeline events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 1 + 2*(qh+1) + 1 + 1 // header, two inputs, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		m.progress = domain.Progress(msg)
		m.status = fmt.Sprintf("Processing page %d of %d", msg.Done, msg.Total)
		if msg.Err != nil {
			m.status += fmt.Sprintf(" (page %d skipped: %v)", msg.Page, msg.Err)
		}
		return m, waitForUpdate(m.updates)

	case ingestDoneMsg:
		m.busy = false
		m.cancel = nil
		m.updates = nil
		switch {
		case errors.Is(msg.err, context.Canceled):
			m.status = "Ingestion cancelled."
			if msg.report != nil {
				m.status += " " + msg.report.Message()
			}
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		default:
			m.status = msg.report.Message()
			m.setFocus(focusQuery)
		}
		return m, nil

	case answerMsg:
		m.busy = false
		m.cancel = nil
		switch {
		case errors.Is(msg.err, domain.ErrNoMatches):
			m.status = "No matches found. Ingest a PDF first."
			m.answer = nil
		case errors.Is(msg.err, context.Canceled):
			m.status = "Question cancelled."
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		default:
			m.answer = msg.answer
			m.cursor = 0
			m.status = fmt.Sprintf("Answer for %q", msg.answer.Query)
			if msg.answer.Fallback {
				m.status += " (generation failed)"
			}
		}
		m.viewport.SetContent(m.renderCurrent())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		switch msg.String() {
		case "esc":
			if m.busy && m.cancel != nil {
				m.cancel()
				m.status = "Cancelling..."
			}
			return m, nil
		case "tab", "shift+tab":
			if m.focus == focusPath {
				m.setFocus(focusQuery)
			} else {
				m.setFocus(focusPath)
			}
			return m, nil
		case "enter":
			if m.busy {
				return m, nil
			}
			if m.focus == focusPath {
				return m.startIngest()
			}
			return m.startAnswer()
		case "down":
			if m.answer != nil && len(m.answer.Matches) > 0 {
				m.cursor = (m.cursor + 1) % len(m.answer.Matches)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if m.answer != nil && len(m.answer.Matches) > 0 {
				m.cursor = (m.cursor - 1 + len(m.answer.Matches)) % len(m.answer.Matches)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	if m.focus == focusPath {
		m.pathInput, cmd = m.pathInput.Update(msg)
	} else {
		m.queryInput, cmd = m.queryInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusPath {
		m.queryInput.Blur()
		m.pathInput.Focus()
	} else {
		m.pathInput.Blur()
		m.queryInput.Focus()
	}
}

func (m Model) startIngest() (tea.Model, tea.Cmd) {
	path := strings.TrimSpace(m.pathInput.Value())
	if path == "" {
		m.status = "Enter a PDF path first."
		return m, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan tea.Msg)
	pipeline := m.pipeline
	go func() {
		defer close(updates)
		report, err := pipeline.IngestFile(ctx, path, func(p domain.Progress) {
			select {
			case updates <- progressMsg(p):
			case <-ctx.Done():
			}
		})
		updates <- ingestDoneMsg{report: report, err: err}
	}()
	m.busy = true
	m.cancel = cancel
	m.updates = updates
	m.progress = domain.Progress{}
	m.status = "Processing " + path + "..."
	return m, tea.Batch(m.spinner.Tick, waitForUpdate(updates))
}

func (m Model) startAnswer() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.queryInput.Value())
	if q == "" {
		return m, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	pipeline, topK := m.pipeline, m.topK
	m.busy = true
	m.cancel = cancel
	m.status = "Thinking..."
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		defer cancel()
		answer, err := pipeline.Answer(ctx, q, topK)
		return answerMsg{answer: answer, err: err}
	})
}

func waitForUpdate(updates <-chan tea.Msg) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return nil
		}
		return msg
	}
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("PDF Question Answering")
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status + "  (Esc to cancel)"
	}
	return header + "\n" +
		resultBoxStyle.Render(m.viewport.View()) + "\n" +
		inputBoxStyle.Render(m.pathInput.View()) + "\n" +
		inputBoxStyle.Render(m.queryInput.View()) + "\n" +
		statusStyle.Render(status)
}

func (m Model) renderCurrent() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(answerStyle.Render(m.answer.Text))
	if len(m.answer.Matches) == 0 {
		return b.String()
	}
	r := m.answer.Matches[m.cursor]
	fmt.Fprintf(&b, "\n\nSource %d/%d  page=%d  score=%.3f", m.cursor+1, len(m.answer.Matches), r.Payload.Page+1, r.Score)
	if r.Payload.Source != "" {
		b.WriteString("  " + r.Payload.Source)
	}
	b.WriteString("\n\n" + highlightBestSentence(r.Payload.Content, m.answer.Query))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	answerStyle    = lipgloss.NewStyle().Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?\n]+[.!?\n])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text+"\n", -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return joinTrimmed(sentences)
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return joinTrimmed(sentences)
}

func joinTrimmed(sentences []string) string {
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
