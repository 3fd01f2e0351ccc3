package utils

import (
	"fmt"
	"syscall"

	"golang.org/x/term"
)

// PromptPassword securely prompts for a password without echoing to terminal
func PromptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Add newline after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	password := string(passwordBytes)
	if len(password) == 0 {
		return "", fmt.Errorf("password cannot be empty")
	}

	return password, nil
}

// PromptPasswordOr prompts only when prompt is set and otherwise returns fallback.
func PromptPasswordOr(prompt bool, label, fallback string) (string, error) {
	if !prompt {
		return fallback, nil
	}
	return PromptPassword(fmt.Sprintf("Enter %s: ", label))
}
