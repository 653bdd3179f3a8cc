package observability

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	colorReset = "\033[0m"
	colorCyan  = "\033[36m"
	colorBold  = "\033[1m"
)

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// PrintBanner writes the startup banner, centered to the terminal width.
func PrintBanner(appName, version string) {
	width := termWidth()
	if width > 72 {
		width = 72
	}

	line := strings.Repeat("─", width)
	title := fmt.Sprintf("%s · %s", strings.ToUpper(appName), version)
	pad := (width - len(title)) / 2
	if pad < 0 {
		pad = 0
	}

	fmt.Println(colorCyan + line + colorReset)
	fmt.Println(strings.Repeat(" ", pad) + colorBold + title + colorReset)
	fmt.Println(colorCyan + line + colorReset)
}
