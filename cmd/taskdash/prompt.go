package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// stdinReader is shared so that several prompts can read piped input
// line by line.
var stdinReader = bufio.NewReader(os.Stdin)

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptLine asks for a line of input. The label is only shown when a
// person is typing.
func promptLine(label string) (string, error) {
	if stdinIsTerminal() {
		fmt.Fprint(os.Stderr, label)
	}
	return readLine(stdinReader)
}

// promptPassword asks for a secret without echoing it when stdin is a
// terminal. Piped input is read as a plain line.
func promptPassword(label string) (string, error) {
	if !stdinIsTerminal() {
		return readLine(stdinReader)
	}
	fmt.Fprint(os.Stderr, label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(secret), nil
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", fmt.Errorf("unexpected end of input")
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// valueOrPrompt returns value when set and prompts otherwise.
func valueOrPrompt(value, label string) (string, error) {
	if strings.TrimSpace(value) != "" {
		return value, nil
	}
	return promptLine(label)
}

func resolveDescriptionFromStdin(description string, reader io.Reader) (string, error) {
	if description != "-" {
		return description, nil
	}

	input, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read description from stdin: %w", err)
	}

	value := strings.TrimSuffix(string(input), "\n")
	value = strings.TrimSuffix(value, "\r")
	return value, nil
}
