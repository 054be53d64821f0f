package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fariz/warden/pkg/toolexec"
)

// TerminalConfirmationHandler prompts for approval on an interactive
// terminal. An unrecognized answer denies.
type TerminalConfirmationHandler struct {
	In  io.Reader
	Out io.Writer
}

// RequestConfirmation implements toolexec.ConfirmationHandler
func (h *TerminalConfirmationHandler) RequestConfirmation(ctx context.Context, req toolexec.ConfirmationRequest) (toolexec.ConfirmationResponse, error) {
	fmt.Fprintf(h.Out, "\nTool %s wants to run: %s\n", req.ToolName, req.Description)
	for _, loc := range req.Locations {
		fmt.Fprintf(h.Out, "  affects: %s\n", loc)
	}
	fmt.Fprint(h.Out, "Approve? [y/N]: ")

	type answer struct {
		text string
		err  error
	}
	answerChan := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(h.In).ReadString('\n')
		answerChan <- answer{text: line, err: err}
	}()

	select {
	case a := <-answerChan:
		if a.err != nil {
			return toolexec.ConfirmationResponse{}, a.err
		}
		switch strings.ToLower(strings.TrimSpace(a.text)) {
		case "y", "yes":
			return toolexec.ConfirmationResponse{Outcome: toolexec.OutcomeApproved, Reason: "approved at terminal"}, nil
		default:
			return toolexec.ConfirmationResponse{Outcome: toolexec.OutcomeDenied, Reason: "denied at terminal"}, nil
		}
	case <-ctx.Done():
		return toolexec.ConfirmationResponse{Outcome: toolexec.OutcomeCancelled, Reason: "confirmation cancelled"}, nil
	}
}
