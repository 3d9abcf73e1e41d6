package output

import (
	"fmt"
	"io"

	"github.com/torosent/volley/internal/runner"
)

// ConsoleObserver prints one line per result:
//
//	[+] req0: 200 in 12.34ms
//	[!] req1: ERROR -> HTTP 503 Service Unavailable
type ConsoleObserver struct {
	w io.Writer
}

func NewConsoleObserver(w io.Writer) *ConsoleObserver {
	if w == nil {
		w = io.Discard
	}
	return &ConsoleObserver{w: w}
}

func (c *ConsoleObserver) ObserveResult(res runner.Result, artifactErr error) {
	elapsed := roundMs(res.Elapsed.Seconds() * 1000)
	var line string
	if res.Succeeded() {
		line = fmt.Sprintf("[+] %s: %d in %.2fms", res.Item.Name, res.StatusCode(), elapsed)
	} else {
		msg := "unknown error"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		line = fmt.Sprintf("[!] %s: ERROR -> %s", res.Item.Name, msg)
	}
	if res.Attempts > 1 {
		line += fmt.Sprintf(" (%d attempts)", res.Attempts)
	}
	if res.Interrupted {
		line += " [interrupted]"
	}
	if artifactErr != nil {
		line += fmt.Sprintf(" [artifact: %v]", artifactErr)
	}
	fmt.Fprintln(c.w, line)
}
