package main

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// loadDotEnv sets KEY=VALUE pairs from path without overriding variables already set.
// Blank lines, comments and an optional "export " prefix are accepted.
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		k, v, ok := parseEnvLine(scanner.Text())
		if !ok || os.Getenv(k) != "" {
			continue
		}
		_ = os.Setenv(k, v)
	}
	return scanner.Err()
}

func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	k, v, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	k = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(k), "export "))
	v = strings.Trim(strings.TrimSpace(v), "\"'")
	if k == "" {
		return "", "", false
	}
	// PORT=:8080
	if k == "PORT" && strings.HasPrefix(v, ":") {
		if p, err := strconv.Atoi(v[1:]); err == nil {
			v = strconv.Itoa(p)
		}
	}
	return k, v, true
}
