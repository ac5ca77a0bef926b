package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the fsmtask banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// Indigo to rose, one step per line
	lines := []struct{ text, color string }{
		{"   __                _            _    ", "#818cf8"},
		{"  / _|___ _ __ ___  | |_ __ _ ___| | __", "#a78bfa"},
		{" | |_/ __| '_ ` _ \\ | __/ _` / __| |/ /", "#c084fc"},
		{" |  _\\__ \\ | | | | || || (_| \\__ \\   < ", "#e879f9"},
		{" |_| |___/_| |_| |_| \\__\\__,_|___/_|\\_\\", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
