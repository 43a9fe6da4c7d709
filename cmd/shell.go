package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/encodeous/wireline/core"
	"github.com/encodeous/wireline/state"
	"github.com/peterh/liner"
)

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wireline_history")
}

// shell reads commands from the terminal and runs them on the node's main loop
// until the operator exits or the node stops.
func shell(s *state.State, out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(in string) []string {
		var c []string
		for _, cmd := range []string{"send ", "table", "ping ", "tracert ", "corrupt ", "loss ", "neighbours", "links", "help", "exit"} {
			if strings.HasPrefix(cmd, strings.ToLower(in)) {
				c = append(c, cmd)
			}
		}
		return c
	})

	hist := historyPath()
	if f, err := os.Open(hist); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if hist == "" {
			return
		}
		if f, err := os.Create(hist); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	return repl(s, line, out)
}

type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

type promptResult struct {
	input string
	err   error
}

// repl runs the read-exec loop. Each prompt is read on its own goroutine so a
// node stopped by a signal ends the loop without waiting for a keystroke.
func repl(s *state.State, p prompter, out io.Writer) error {
	fmt.Fprintf(out, "wireline node %s, type 'help' for a list of commands\n", s.Id)
	prompt := fmt.Sprintf("%s> ", s.Id)
	for s.Context.Err() == nil {
		read := make(chan promptResult, 1)
		go func() {
			input, err := p.Prompt(prompt)
			read <- promptResult{input, err}
		}()

		var r promptResult
		select {
		case r = <-read:
		case <-s.Context.Done():
			fmt.Fprintln(out)
			return nil
		}
		if r.err != nil {
			if errors.Is(r.err, liner.ErrPromptAborted) {
				fmt.Fprintln(out, "Use 'exit' to quit")
				continue
			}
			if errors.Is(r.err, io.EOF) {
				return nil
			}
			return r.err
		}
		input := strings.TrimSpace(r.input)
		if input == "" {
			continue
		}
		p.AppendHistory(input)

		_, err := s.DispatchWait(func(s *state.State) (any, error) {
			return nil, core.Exec(s, input, out)
		})
		switch {
		case errors.Is(err, core.ErrExit):
			return nil
		case err != nil && s.Context.Err() != nil:
			return nil
		case err != nil:
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	return nil
}
