package stages

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/easepack/internal/build/models"
)

// StageNotice prints the completion banner and, when the interactive pause is
// enabled, blocks until the operator acknowledges (or the context is canceled).
func StageNotice(ctx context.Context, bs *models.BuildState) error {
	out := bs.Out
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "========================================")
	fmt.Fprintln(out, "Build complete!")
	if bs.Report.OutputPath != "" {
		fmt.Fprintf(out, "Check the dist folder for %s\n", filepath.Base(bs.Report.OutputPath))
	} else {
		fmt.Fprintf(out, "Check the dist folder for %s\n", bs.Config.App.Name)
	}
	fmt.Fprintln(out, "========================================")

	if !bs.Config.Build.Pause {
		return nil
	}

	in := bs.In
	if in == nil {
		in = os.Stdin
	}
	fmt.Fprint(out, "Press Enter to continue . . . ")

	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(in).ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		done <- err
	}()
	select {
	case <-ctx.Done():
		return models.NewCanceledStageError(models.StageNotice, ctx.Err())
	case err := <-done:
		if err != nil {
			return models.NewWarnStageError(models.StageNotice, fmt.Errorf("read acknowledgment: %w", err))
		}
		return nil
	}
}
