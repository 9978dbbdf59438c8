package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
	colorYellow   = "\033[93m"
)

var spinnerFrames = []string{"◜", "◝", "◞", "◟"}
var spinnerIdx = 0

// termMu serializes every terminal write so the status line's cursor
// save/restore is never split by a log line.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer for log output that never interleaves with PrintLiveStatus.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

func PrintBanner(site string) {
	fmt.Print("\033[2J\033[H")

	banner := `
    ____  __________  ______   _       _______ _____   ___    ____  ____
   / __ \/ ____/ __ \/ ____/  | |     / /  _/__  /  /   |  / __ \/ __ \
  / /_/ / __/ / /_/ / /_      | | /| / // /   / /  / /| | / /_/ / / / /
 / ____/ /___/ _, _/ __/      | |/ |/ // /   / /__/ ___ |/ _, _/ /_/ /
/_/   /_____/_/ |_/_/         |__/|__/___/  /____/_/  |_/_/ |_/_____/

            >> PERFORMANCE WIZARD <<
`

	width := termWidth()
	lines := strings.Split(banner, "\n")
	if site != "" {
		lines = append(lines, "analyzing "+site)
	}

	for _, l := range lines {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

func InitializeTerminal() {
	// Banner: 1-10, status: 11, logs: 13+
	fmt.Print("\033[13;r")
	fmt.Print("\033[13;1H")
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// PrintLiveStatus redraws the status line with the current step and heartbeat.
func PrintLiveStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime).Round(time.Second)
	memMB := float64(m.Alloc) / 1024 / 1024
	st := GetStatus()

	pulseIcon := "🔴"
	pulseText := "OFFLINE"
	pulseColor := colorNeonMag

	delta := time.Since(st.LastHeartbeat)
	if delta < 40*time.Second {
		pulseIcon = "🟢"
		pulseText = "HEALTHY"
		pulseColor = colorNeonCyan
	} else if delta < 90*time.Second {
		pulseIcon = "🟡"
		pulseText = "LAGGING"
		pulseColor = colorPurple
	}

	icon := "💤"
	roleColor := colorReset
	switch st.Role {
	case RoleCollecting:
		icon = "📡"
		roleColor = colorYellow
	case RoleThinking:
		icon = "🧠"
		roleColor = colorNeonMag
	}

	spinner := " "
	if st.Role != RoleIdle {
		spinner = spinnerFrames[spinnerIdx]
		spinnerIdx = (spinnerIdx + 1) % len(spinnerFrames)
	}

	task := st.Task
	if task == "" {
		task = "Waiting..."
	}
	if len(task) > 25 {
		task = task[:22] + "..."
	}

	progress := "-"
	if st.Total > 0 {
		progress = fmt.Sprintf("%d/%d", st.Step, st.Total-1)
	}

	statusStr := fmt.Sprintf(
		"\033[s\033[11;1H\033[K%s[%s] %s%s %-8s%s | %s%s %-10s%s [%s] step %s %s%s%s | cmds %d | up %v | %.1fMB\033[u",
		colorReset,
		st.LastHeartbeat.Format("15:04:05"),
		pulseColor, pulseIcon, pulseText, colorReset,
		roleColor, icon, st.Role, colorReset,
		task,
		progress,
		colorPurple, spinner, colorReset,
		st.Commands,
		uptime,
		memMB,
	)

	termMu.Lock()
	fmt.Print(statusStr)
	termMu.Unlock()
}
