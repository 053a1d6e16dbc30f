package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gosuda/qbc/internal/codegen"
	eruntime "github.com/gosuda/qbc/runtime"
)

var (
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	inputStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("24")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// feedInput is the debugger's InputProvider: the TUI pushes exactly one
// typed line per INPUT statement before letting the stepper resume, so
// ex.in() never blocks waiting on a goroutine the way a live terminal
// session would.
type feedInput struct {
	pending []string
}

func (f *feedInput) push(line string) { f.pending = append(f.pending, line) }

func (f *feedInput) provider() eruntime.InputProvider {
	return func() (string, error) {
		if len(f.pending) == 0 {
			return "", io.EOF
		}
		line := f.pending[0]
		f.pending = f.pending[1:]
		return line, nil
	}
}

// debugModel steps a compiled module one instruction at a time, the way
// cmd/erago/frontend.go's model streams a running VM's output into a
// viewport -- but driven directly by key presses, since the trampoline has
// no blocking I/O of its own until it reaches an INPUT statement.
type debugModel struct {
	cm      *codegen.CompiledModule
	stepper *eruntime.Stepper
	feed    *feedInput
	out     *strings.Builder

	viewport viewport.Model
	input    textinput.Model
	history  []string
	status   string
	awaiting bool
	ready    bool
}

func newDebugModel(cm *codegen.CompiledModule) debugModel {
	feed := &feedInput{}
	out := &strings.Builder{}
	ex := eruntime.NewExecutor(cm, out, feed.provider())

	ti := textinput.New()
	ti.Prompt = "? "
	ti.CharLimit = 256

	return debugModel{
		cm:      cm,
		stepper: eruntime.NewStepper(ex),
		feed:    feed,
		out:     out,
		input:   ti,
		status:  fmt.Sprintf("ready: %d instruction(s) compiled from %s", len(cm.Stmts), cm.SourceFile),
	}
}

func (m debugModel) Init() tea.Cmd { return nil }

func (m debugModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		vh := msg.Height - 4
		if vh < 1 {
			vh = 1
		}
		m.viewport = viewport.New(msg.Width, vh)
		m.ready = true
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.awaiting {
			if msg.String() == "enter" {
				m.feed.push(m.input.Value())
				m.input.SetValue("")
				m.input.Blur()
				m.awaiting = false
				m.recordStep()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "n", " ":
			m.stepOrAwait()
		case "c":
			for !m.stepper.Finished() && !m.awaiting {
				m.stepOrAwait()
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// stepOrAwait executes one instruction, unless it's an INPUT statement, in
// which case it switches to awaiting-input mode and focuses the text box
// instead of stepping.
func (m *debugModel) stepOrAwait() {
	if m.stepper.Finished() {
		return
	}
	stmt, ok := m.stepper.Peek()
	if ok && stmt.Kind == codegen.KindInput {
		m.awaiting = true
		m.input.Focus()
		m.status = "awaiting INPUT: type a value, then press enter"
		return
	}
	m.recordStep()
}

func (m *debugModel) recordStep() {
	stmt, ok := m.stepper.Peek()
	if !ok {
		return
	}
	pc := m.stepper.PC()
	cont := m.stepper.Step()
	if text := m.out.String(); text != "" {
		m.history = append(m.history, strings.TrimRight(text, "\n"))
		m.out.Reset()
	}
	m.history = append(m.history, fmt.Sprintf("[%4d] line %d: %s", pc, stmt.Loc.Line, instrLabel(stmt)))
	switch {
	case !cont && m.stepper.Err() != nil:
		m.status = errStyle.Render(m.stepper.Err().Error())
	case !cont:
		m.status = "program ended"
	default:
		m.status = fmt.Sprintf("pc=%d, %d global var(s)", m.stepper.PC(), len(m.stepper.Globals()))
	}
	m.refreshViewport()
}

func (m *debugModel) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.history, "\n"))
	m.viewport.GotoBottom()
}

func (m debugModel) View() string {
	if !m.ready {
		return "initializing..."
	}
	header := headerStyle.Render(fmt.Sprintf("qbc debug: %s (%d instrs)", m.cm.SourceFile, len(m.cm.Stmts)))
	parts := []string{header, m.viewport.View()}
	if m.awaiting {
		parts = append(parts, inputStyle.Render(m.input.View()))
	}
	parts = append(parts, m.status+"  [n: step, c: continue, q: quit]")
	return strings.Join(parts, "\n")
}

// instrLabel renders a short mnemonic for one compiled instruction, for
// the debugger's step history pane.
func instrLabel(s codegen.CompiledStmt) string {
	switch s.Kind {
	case codegen.KindLabel:
		return "LABEL " + s.Label
	case codegen.KindAssign:
		return "ASSIGN"
	case codegen.KindJump:
		return "GOTO " + s.Label
	case codegen.KindJumpIfFalse:
		return "IF..GOTO " + s.Label
	case codegen.KindGosub:
		return "GOSUB " + s.Label
	case codegen.KindReturn:
		return "RETURN"
	case codegen.KindEnd:
		return "END"
	case codegen.KindPrint:
		return "PRINT"
	case codegen.KindInput:
		return "INPUT"
	case codegen.KindDim:
		return "DIM"
	case codegen.KindConst:
		return "CONST"
	case codegen.KindRead:
		return "READ"
	case codegen.KindRestore:
		return "RESTORE"
	case codegen.KindSwap:
		return "SWAP"
	default:
		return "?"
	}
}
