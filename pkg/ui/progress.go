package ui

import (
	"fmt"
	"strings"
	"time"

	"coinclicker/pkg/coin"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// RenderBar draws a fixed width text progress bar
func RenderBar(progress, max, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := 0
	if max > 0 {
		filled = progress * width / max
	}
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, width-filled),
		progress, max)
}

// FormatRemaining renders a cooldown as m:ss
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// PrintCoinState prints the controller state for non-interactive output
func PrintCoinState(s coin.State) {
	fmt.Fprintf(Output, "%s %s\n", Cyan("[PROGRESS]"), Yellow(RenderBar(s.Progress, s.MaxProgress, 30)))

	if s.IsRefilling {
		fmt.Fprintf(Output, "%s %s left\n", Magenta("[COOLDOWN]"), Yellow(FormatRemaining(s.Remaining)))
	} else {
		fmt.Fprintf(Output, "%s %s\n", Green("[READY]"), Dim("press the coin to earn"))
	}
	if s.ShowAlert {
		fmt.Fprintln(Output, Yellow("Coin limit reached. Take a breather while it refills."))
	}
}
