package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/localekit/csvtrans/config"
	"github.com/localekit/csvtrans/i18n"
	"github.com/localekit/csvtrans/langmeta"
)

// errMenuCancelled is returned when the user backs out of the menu.
var errMenuCancelled = errors.New("cancelled")

var (
	menuCyan   = color.New(color.Bold, color.FgCyan).SprintFunc()
	menuGreen  = color.New(color.FgGreen).SprintFunc()
	menuYellow = color.New(color.Bold, color.FgYellow).SprintFunc()
	menuRed    = color.New(color.FgRed).SprintFunc()
)

// selection is the outcome of the interactive menu.
type selection struct {
	source string
	target string
	files  []string
}

// runMenu walks the user through language and file selection and asks for
// confirmation. Input errors other than EOF are reported; EOF and an
// explicit "n" at the confirmation both count as cancellation.
func runMenu(cfg *config.Config, available []string) (*selection, error) {
	in := bufio.NewReader(os.Stdin)

	source, err := pickLanguage(in, i18n.T("Select source language"), cfg.SourceLang)
	if err != nil {
		return nil, err
	}

	target, err := pickLanguage(in, i18n.T("Select target language"), cfg.TargetLang)
	if err != nil {
		return nil, err
	}
	if target == source {
		fmt.Fprintf(os.Stderr, "%s\n", menuRed(i18n.T("Invalid choice!")))
		return nil, fmt.Errorf("source and target language are both %q", source)
	}

	files, err := pickFiles(in, available)
	if err != nil {
		return nil, err
	}

	sel := &selection{source: source, target: target, files: files}
	ok, err := confirm(in, sel)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errMenuCancelled
	}
	return sel, nil
}

// pickLanguage shows the supported languages in two columns and reads a
// 1-based choice. An empty line keeps the default.
func pickLanguage(in *bufio.Reader, title, def string) (string, error) {
	fmt.Fprintf(os.Stderr, "\n%s (%s: %s)\n", menuCyan(title), menuGreen("default"), def)

	// Two-column layout over the supported set.
	half := (len(langmeta.Supported) + 1) / 2
	for i := 0; i < half; i++ {
		left := langmeta.Supported[i]
		line := fmt.Sprintf("  %2d) %-4s %-14s", i+1, left, langmeta.Registry[left].Name)
		if j := i + half; j < len(langmeta.Supported) {
			right := langmeta.Supported[j]
			line += fmt.Sprintf("  %2d) %-4s %-14s", j+1, right, langmeta.Registry[right].Name)
		}
		fmt.Fprintln(os.Stderr, line)
	}

	for {
		fmt.Fprintf(os.Stderr, "%s: ", i18n.T("Enter a number"))
		line, err := readLine(in)
		if err != nil {
			return "", err
		}
		if line == "" {
			return def, nil
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(langmeta.Supported) {
			fmt.Fprintf(os.Stderr, "%s\n", menuRed(i18n.T("Invalid choice!")))
			continue
		}
		return langmeta.Supported[n-1], nil
	}
}

// pickFiles shows the available CSV files plus an "all files" entry.
func pickFiles(in *bufio.Reader, available []string) ([]string, error) {
	fmt.Fprintf(os.Stderr, "\n%s\n", menuCyan(i18n.T("Select file to translate")))
	fmt.Fprintf(os.Stderr, "  %2d) %s\n", 1, menuYellow(i18n.T("All files")))
	for i, f := range available {
		fmt.Fprintf(os.Stderr, "  %2d) %s\n", i+2, f)
	}

	for {
		fmt.Fprintf(os.Stderr, "%s: ", i18n.T("Enter a number"))
		line, err := readLine(in)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(available)+1 {
			fmt.Fprintf(os.Stderr, "%s\n", menuRed(i18n.T("Invalid choice!")))
			continue
		}
		if n == 1 {
			return available, nil
		}
		return []string{available[n-2]}, nil
	}
}

// confirm prints the selection summary and asks for a yes/no answer.
func confirm(in *bufio.Reader, sel *selection) (bool, error) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "  %s: %s (%s)\n", i18n.T("Source language"), sel.source, langmeta.Resolve(sel.source).Name)
	fmt.Fprintf(os.Stderr, "  %s: %s (%s)\n", i18n.T("Target language"), sel.target, langmeta.Resolve(sel.target).Name)
	fmt.Fprintf(os.Stderr, "  %s: %s\n", i18n.T("Files"), strings.Join(sel.files, ", "))

	for {
		fmt.Fprintf(os.Stderr, "%s ", menuCyan(i18n.T("Continue? (y/n)")))
		line, err := readLine(in)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes", "":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintf(os.Stderr, "%s\n", menuRed(i18n.T("Invalid choice!")))
	}
}

// readLine reads one trimmed line; EOF maps to cancellation.
func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(line) != "" {
				return strings.TrimSpace(line), nil
			}
			return "", errMenuCancelled
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
